// Package extraction turns a relevant message into a request for the LLM
// extraction service and validates the service's answer into a press item.
//
// The service may answer with {"ignore": true} for messages that turn out not
// to announce a programme, or with the item fields. Validate never coerces a
// missing or malformed required field; such responses become Invalid with a
// reason. Keys are accepted in English or in the Dutch spelling the service
// sometimes falls back to (titel, zender, datum, tijd, samenvatting,
// seizoen_start, volledige_tekst).
package extraction
