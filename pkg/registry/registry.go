// Package registry pulls trainer WebAssembly modules from an OCI registry.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const (
	WasmMediaType      = "application/wasm"
	WasmLayerMediaType = "application/vnd.wasm.content.layer.v1+wasm"
)

var errNoLayers = errors.New("manifest has no layers")

type Config struct {
	Root         string `env:"ROOT"         envDefault:"/tmp/fl_participant_oci" toml:"root"`
	Tag          string `env:"TAG"          envDefault:"latest"                  toml:"tag"`
	PlainHTTP    bool   `env:"PLAIN_HTTP"   envDefault:"false"                   toml:"plain_http"`
	Authenticate bool   `env:"AUTHENTICATE" envDefault:"false"                   toml:"authenticate"`
	Username     string `env:"USERNAME"     envDefault:""                        toml:"username"`
	Password     string `env:"PASSWORD"     envDefault:""                        toml:"password"`
}

// FetchWasm copies reference (for example "registry:5000/fl/trainer") into
// the local OCI layout at Root and returns the module bytes.
func (c Config) FetchWasm(ctx context.Context, reference string) ([]byte, error) {
	store, err := oci.New(c.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to open OCI layout: %w", err)
	}

	repo, err := remote.NewRepository(reference)
	if err != nil {
		return nil, fmt.Errorf("invalid registry reference %q: %w", reference, err)
	}
	repo.PlainHTTP = c.PlainHTTP

	if c.Authenticate {
		repo.Client = &auth.Client{
			Client: retry.DefaultClient,
			Cache:  auth.NewCache(),
			Credential: auth.StaticCredential(repo.Reference.Registry, auth.Credential{
				Username: c.Username,
				Password: c.Password,
			}),
		}
	}

	if _, err := oras.Copy(ctx, repo, c.tag(), store, c.tag(), oras.DefaultCopyOptions); err != nil {
		return nil, fmt.Errorf("failed to pull %s:%s: %w", reference, c.tag(), err)
	}

	return Fetch(ctx, store, c.tag())
}

func (c Config) tag() string {
	if c.Tag == "" {
		return "latest"
	}

	return c.Tag
}

// Fetch resolves tag in target and returns the content of its wasm layer.
func Fetch(ctx context.Context, target oras.ReadOnlyTarget, tag string) ([]byte, error) {
	desc, err := target.Resolve(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", tag, err)
	}

	data, err := content.FetchAll(ctx, target, desc)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	layer, err := SelectLayer(manifest)
	if err != nil {
		return nil, err
	}

	return content.FetchAll(ctx, target, layer)
}

// SelectLayer prefers a layer with a wasm media type and falls back to the
// first layer.
func SelectLayer(manifest ocispec.Manifest) (ocispec.Descriptor, error) {
	if len(manifest.Layers) == 0 {
		return ocispec.Descriptor{}, errNoLayers
	}
	for _, l := range manifest.Layers {
		if l.MediaType == WasmMediaType || l.MediaType == WasmLayerMediaType {
			return l, nil
		}
	}

	return manifest.Layers[0], nil
}
