package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/flparticipant"
	"github.com/absmach/flparticipant/coordinator"
	"github.com/absmach/flparticipant/pkg/backoff"
	"github.com/absmach/flparticipant/pkg/fl"
	"github.com/absmach/flparticipant/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9099", cfg.HTTPAddress)
	assert.Empty(t, cfg.Participant.ID)
	assert.Equal(t, backoff.DefMin, cfg.Participant.Backoff.Min)
	assert.Equal(t, backoff.DefMax, cfg.Participant.Backoff.Max)
	assert.Equal(t, coordinator.TransportHTTP, cfg.Coordinator.Transport)
	assert.Equal(t, 10*time.Second, cfg.Coordinator.Timeout)
	assert.Equal(t, state.TypeBadger, cfg.State.Type)
	assert.Equal(t, fl.F32, cfg.Trainer.DataType)
	assert.True(t, cfg.Trainer.Participate)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PARTICIPANT_ID", "env-participant")
	t.Setenv("PARTICIPANT_BACKOFF_MAX", "2s")
	t.Setenv("PARTICIPANT_COORDINATOR_TRANSPORT", "mqtt")
	t.Setenv("PARTICIPANT_MQTT_CHANNEL_ID", "channel")
	t.Setenv("PARTICIPANT_STATE_TYPE", "memory")
	t.Setenv("PARTICIPANT_TRAINER_DATA_TYPE", "f64")
	t.Setenv("PARTICIPANT_OTEL_URL", "http://localhost:4318/v1/traces")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env-participant", cfg.Participant.ID)
	assert.Equal(t, 2*time.Second, cfg.Participant.Backoff.Max)
	assert.Equal(t, coordinator.TransportMQTT, cfg.Coordinator.Transport)
	assert.Equal(t, "channel", cfg.MQTT.Channel)
	assert.Equal(t, state.TypeMemory, cfg.State.Type)
	assert.Equal(t, fl.F64, cfg.Trainer.DataType)
	assert.Equal(t, "localhost:4318", cfg.OTELURL.Host)
}

func TestLoadConfigFileOverridesEnv(t *testing.T) {
	t.Setenv("PARTICIPANT_ID", "env-participant")
	t.Setenv("PARTICIPANT_COORDINATOR_ADDRESS", "http://env:7070")
	t.Setenv("PARTICIPANT_TRAINER_FILE", "env.wasm")

	path := filepath.Join(t.TempDir(), "config.toml")
	file := flparticipant.Config{
		Participant: flparticipant.ParticipantConfig{ID: "file-participant"},
		Coordinator: flparticipant.CoordinatorConfig{Address: "http://file:7070", Scalar: 3},
	}
	require.NoError(t, file.Save(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file-participant", cfg.Participant.ID)
	assert.Equal(t, "http://file:7070", cfg.Coordinator.Address)
	assert.InDelta(t, 3, cfg.Coordinator.Scalar, 0)
	assert.Equal(t, "env.wasm", cfg.Trainer.File)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestSetIdentity(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.setIdentity()
	assert.NotEmpty(t, cfg.InstanceID)
	assert.NotEmpty(t, cfg.Participant.ID)

	cfg = Config{InstanceID: "instance"}
	cfg.Participant.ID = "participant"
	cfg.setIdentity()
	assert.Equal(t, "instance", cfg.InstanceID)
	assert.Equal(t, "participant", cfg.Participant.ID)
}

func TestConfigValidate(t *testing.T) {
	base, err := LoadConfig("")
	require.NoError(t, err)
	base.Participant.ID = "participant"
	base.Trainer.File = "trainer.wasm"

	cases := []struct {
		desc   string
		mutate func(*Config)
		err    error
	}{
		{
			desc:   "valid http",
			mutate: func(*Config) {},
		},
		{
			desc:   "missing trainer",
			mutate: func(c *Config) { c.Trainer.File = "" },
			err:    errMissingTrainer,
		},
		{
			desc: "mqtt without channel",
			mutate: func(c *Config) {
				c.Coordinator.Transport = coordinator.TransportMQTT
				c.MQTT.DomainID = "domain"
			},
			err: errMissingChannel,
		},
		{
			desc: "valid mqtt",
			mutate: func(c *Config) {
				c.Coordinator.Transport = coordinator.TransportMQTT
				c.MQTT.DomainID = "domain"
				c.MQTT.Channel = "channel"
			},
		},
		{
			desc: "standalone ignores transport",
			mutate: func(c *Config) {
				c.Coordinator.Standalone = true
				c.Coordinator.Transport = "carrier-pigeon"
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.err == nil {
				assert.NoError(t, err)

				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}

	invalid := base
	invalid.Participant.ID = ""
	assert.Error(t, invalid.Validate())
}

func TestRedacted(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.MQTT.Password = "secret"
	cfg.Registry.Password = "secret"

	r := cfg.Redacted()
	assert.Equal(t, redacted, r.MQTT.Password)
	assert.Equal(t, redacted, r.Registry.Password)
	assert.Empty(t, r.State.PostgresPass)
	assert.Equal(t, "secret", cfg.MQTT.Password)
}

func TestBuildFileConfig(t *testing.T) {
	t.Parallel()

	input := flparticipant.Config{
		Participant: flparticipant.ParticipantConfig{ID: "participant"},
		Coordinator: flparticipant.CoordinatorConfig{Address: "http://localhost:7070"},
		MQTT:        flparticipant.MQTTConfig{Address: "tcp://localhost:1883", ChannelID: "channel"},
		Trainer:     flparticipant.TrainerConfig{File: "trainer.wasm"},
	}

	cases := []struct {
		desc   string
		cfg    flparticipant.Config
		mode   string
		scalar string
		check  func(*testing.T, flparticipant.Config)
		err    error
	}{
		{
			desc:   "http",
			cfg:    input,
			mode:   coordinator.TransportHTTP,
			scalar: "0.5",
			check: func(t *testing.T, c flparticipant.Config) {
				assert.Equal(t, coordinator.TransportHTTP, c.Coordinator.Transport)
				assert.Equal(t, "http://localhost:7070", c.Coordinator.Address)
				assert.InDelta(t, 0.5, c.Coordinator.Scalar, 0)
				assert.Empty(t, c.MQTT)
			},
		},
		{
			desc:   "mqtt",
			cfg:    input,
			mode:   coordinator.TransportMQTT,
			scalar: "1",
			check: func(t *testing.T, c flparticipant.Config) {
				assert.Equal(t, coordinator.TransportMQTT, c.Coordinator.Transport)
				assert.Empty(t, c.Coordinator.Address)
				assert.Equal(t, "channel", c.MQTT.ChannelID)
			},
		},
		{
			desc:   "standalone",
			cfg:    input,
			mode:   modeStandalone,
			scalar: "1",
			check: func(t *testing.T, c flparticipant.Config) {
				assert.True(t, c.Coordinator.Standalone)
				assert.Empty(t, c.Coordinator.Transport)
			},
		},
		{
			desc:   "invalid scalar",
			cfg:    input,
			mode:   coordinator.TransportHTTP,
			scalar: "-1",
			err:    errInvalidScalar,
		},
		{
			desc:   "missing trainer",
			cfg:    flparticipant.Config{Participant: input.Participant},
			mode:   coordinator.TransportHTTP,
			scalar: "1",
			err:    errMissingTrainer,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			cfg, err := buildFileConfig(tc.cfg, tc.mode, tc.scalar)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestFormValidators(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, notEmpty(""), errEmptyValue)
	assert.NoError(t, notEmpty("x"))
	assert.ErrorIs(t, validScalar("abc"), errInvalidScalar)
	assert.ErrorIs(t, validScalar("0"), errInvalidScalar)
	assert.NoError(t, validScalar("2.5"))
	assert.Error(t, validURL("localhost"))
	assert.NoError(t, validURL("tcp://localhost:1883"))
}
