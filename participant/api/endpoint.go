package api

import (
	"context"

	"github.com/go-kit/kit/endpoint"
)

func statusEndpoint(svc Service) endpoint.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return newStatusRes(svc.Status(), false), nil
	}
}

func stopEndpoint(svc Service) endpoint.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		svc.Stop()

		return newStatusRes(svc.Status(), true), nil
	}
}
