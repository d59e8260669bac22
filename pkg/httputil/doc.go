// Package httputil provides HTTP utilities for standardized
// request/response handling.
//
// Response helpers:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteBadRequest(w, "Invalid input")
//
// Request parsing:
//
//	var req search.SearchRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	limit := httputil.ParseQueryInt(r, "limit", 5)
//
// Middleware:
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//	)
package httputil
