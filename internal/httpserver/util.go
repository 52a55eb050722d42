package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
)

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}

type errorResp struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// writeError maps an apperror.Kind to an HTTP status and writes the body,
// mirroring the wire-level mapping the control surface taxonomy names.
func writeError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	code := http.StatusInternalServerError
	switch kind {
	case apperror.NotFound:
		code = http.StatusNotFound
	case apperror.ConfigInvalid:
		code = http.StatusBadRequest
	case apperror.Busy:
		code = http.StatusConflict
	case apperror.PortUnavailable:
		code = http.StatusConflict
	case apperror.BuildFailed, apperror.StartupFailed, apperror.CommandFailed:
		code = http.StatusBadGateway
	case apperror.HandlerMissing:
		code = http.StatusBadRequest
	}
	writeJSON(c, code, errorResp{Kind: string(kind), Error: err.Error()})
}
