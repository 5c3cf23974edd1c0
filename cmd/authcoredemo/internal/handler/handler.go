// Package handler registers the demo binary's HTTP routes the way the
// teacher's goctl-scaffolded handler package does (httpx.Parse /
// httpx.OkJsonCtx / httpx.ErrorCtx), but hand-written rather than
// goctl-generated since the Engine API is the one surface being exercised.
package handler

import (
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/veyra/authcore/cmd/authcoredemo/internal/svc"
	"github.com/veyra/authcore/internal/coreerr"
	"github.com/veyra/authcore/internal/session"
)

// RegisterHandlers wires every route the demo binary exposes: the public
// JWKS document, introspection, and the step/session entry points the
// Engine API defines (spec §6).
func RegisterHandlers(server *rest.Server, ctx *svc.ServiceContext) {
	server.AddRoutes([]rest.Route{
		{Method: http.MethodGet, Path: "/.well-known/jwks.json", Handler: jwksHandler(ctx)},
		{Method: http.MethodGet, Path: "/introspection", Handler: introspectionHandler(ctx)},
		{Method: http.MethodPost, Path: "/steps/:plugin/:step", Handler: executeStepHandler(ctx)},
		{Method: http.MethodPost, Path: "/sessions", Handler: createSessionHandler(ctx)},
		{Method: http.MethodPost, Path: "/sessions/check", Handler: checkSessionHandler(ctx)},
		{Method: http.MethodPost, Path: "/sessions/destroy", Handler: destroySessionHandler(ctx)},
		{Method: http.MethodGet, Path: "/profiles/:subjectId", Handler: unifiedProfileHandler(ctx)},
	})
}

func jwksHandler(ctx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctx.Engine.JWKS == nil {
			httpx.ErrorCtx(r.Context(), w, coreerr.NotFound("jwks service not configured"))
			return
		}
		doc, err := ctx.Engine.JWKS.GetPublicJWKS(r.Context())
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, doc)
	}
}

func introspectionHandler(ctx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.OkJsonCtx(r.Context(), w, ctx.Engine.GetIntrospectionData())
	}
}

type executeStepRequest struct {
	Plugin string         `path:"plugin"`
	Step   string         `path:"step"`
	Input  map[string]any `json:"input,optional"`
}

func executeStepHandler(ctx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req executeStepRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		output, err := ctx.Engine.ExecuteStep(r.Context(), req.Plugin, req.Step, req.Input)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, output)
	}
}

type createSessionRequest struct {
	SubjectType string         `json:"subjectType"`
	SubjectID   string         `json:"subjectId"`
	TTLSeconds  int64          `json:"ttlSeconds,optional"`
	DeviceInfo  map[string]any `json:"deviceInfo,optional"`
}

func createSessionHandler(ctx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		ttl := time.Duration(req.TTLSeconds) * time.Second
		token, err := ctx.Engine.CreateSessionFor(r.Context(), req.SubjectType, req.SubjectID, ttl, session.DeviceInfo(req.DeviceInfo))
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, token)
	}
}

type checkSessionRequest struct {
	Token        session.Token  `json:"token"`
	DeviceInfo   map[string]any `json:"deviceInfo,optional"`
}

func checkSessionHandler(ctx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkSessionRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		result, err := ctx.Engine.CheckSession(r.Context(), req.Token, session.DeviceInfo(req.DeviceInfo))
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, result)
	}
}

func destroySessionHandler(ctx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token session.Token `json:"token"`
		}
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		if err := ctx.Engine.Sessions.DestroySession(r.Context(), req.Token); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, map[string]any{"success": true})
	}
}

type unifiedProfileRequest struct {
	SubjectID string `path:"subjectId"`
}

func unifiedProfileHandler(ctx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req unifiedProfileRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, ctx.Engine.GetUnifiedProfile(r.Context(), req.SubjectID))
	}
}

