// Package facilitatorhttp implements the facilitator's own HTTP surface
// named in spec.md §6 (GET /supported, POST /verify, POST /settle), gated
// by JSON-schema validation of the inbound VerifyRequest/SettleRequest
// bodies before they reach the dispatch core. Grounded on the teacher's
// http/gin package for the gin-routed adapter style and on its
// extensions/bazaar/facilitator.go for the gojsonschema.Validate call
// shape (see DESIGN.md).
package facilitatorhttp

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// requestSchema is shared by VerifyRequest and SettleRequest: both carry
// x402Version plus the raw payload/requirements objects the facilitator
// core re-parses per-version (spec.md §4.1's tolerant JSON decode already
// handles the scheme-specific payload shape, so this schema only enforces
// the outer envelope).
const requestSchema = `{
  "type": "object",
  "required": ["x402Version", "paymentPayload", "paymentRequirements"],
  "properties": {
    "x402Version": {"type": "integer", "enum": [1, 2]},
    "paymentPayload": {"type": "object"},
    "paymentRequirements": {"type": "object"}
  }
}`

var requestSchemaLoader = gojsonschema.NewStringLoader(requestSchema)

// validateRequestEnvelope checks body against requestSchema, returning a
// joined error message on failure.
func validateRequestEnvelope(body []byte) error {
	result, err := gojsonschema.Validate(requestSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("facilitatorhttp: schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msg := "facilitatorhttp: invalid request body:"
	for _, desc := range result.Errors() {
		msg += " " + desc.String() + ";"
	}
	return fmt.Errorf("%s", msg)
}
