// Package config loads, normalizes, and validates pressdesk configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GMAIL_USER, GMAIL_PASSWORD, and OPENAI_API_KEY. The Config type centralizes
// every knob the pipeline and CLI need so mailbox credentials, the extraction
// service, relevance lists, and the store location are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical modes, and clear validation errors.
package config
