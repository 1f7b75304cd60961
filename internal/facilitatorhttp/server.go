package facilitatorhttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	x402 "github.com/qntx/x402"
)

// FacilitatorCore is the subset of *x402.x402Facilitator this package
// depends on, kept narrow so handlers are testable against a stub without
// standing up real scheme handlers. x402.Newx402Facilitator satisfies it
// even though the concrete type it returns is unexported.
type FacilitatorCore interface {
	Verify(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (*x402.VerifyResponse, error)
	Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (*x402.SettleResponse, error)
	GetSupported() x402.SupportedResponse
}

// requestEnvelope is the body shape of POST /verify and POST /settle.
// x402Version is carried both here and inside paymentPayload/
// paymentRequirements themselves (types.DetectVersion reads it off the
// payload), so the envelope's copy is only used for schema validation.
type requestEnvelope struct {
	X402Version         int             `json:"x402Version"`
	PaymentPayload      json.RawMessage `json:"paymentPayload"`
	PaymentRequirements json.RawMessage `json:"paymentRequirements"`
}

// Server adapts a FacilitatorCore onto the gin-routed HTTP surface named in
// SPEC_FULL.md §9: GET /supported, POST /verify, POST /settle. Grounded on
// the teacher's http/gin package for route registration style (DESIGN.md).
type Server struct {
	core FacilitatorCore
}

// New builds a Server wrapping core.
func New(core FacilitatorCore) *Server {
	return &Server{core: core}
}

// RegisterRoutes mounts the facilitator's three endpoints on router.
func (s *Server) RegisterRoutes(router gin.IRouter) {
	router.GET("/supported", s.handleSupported)
	router.POST("/verify", s.handleVerify)
	router.POST("/settle", s.handleSettle)
}

func (s *Server) handleSupported(c *gin.Context) {
	c.JSON(http.StatusOK, s.core.GetSupported())
}

func (s *Server) handleVerify(c *gin.Context) {
	env, err := s.readEnvelope(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.core.Verify(c.Request.Context(), env.PaymentPayload, env.PaymentRequirements)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"isValid": false, "invalidReason": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSettle(c *gin.Context) {
	env, err := s.readEnvelope(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.core.Settle(c.Request.Context(), env.PaymentPayload, env.PaymentRequirements)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "errorReason": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// readEnvelope drains the body once so it can both be schema-validated and
// decoded into requestEnvelope.
func (s *Server) readEnvelope(c *gin.Context) (*requestEnvelope, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if err := validateRequestEnvelope(body); err != nil {
		return nil, err
	}

	var env requestEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
