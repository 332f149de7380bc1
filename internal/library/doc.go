// Package library owns the asset catalogue: triaged media files admitted into
// the library, their artifact naming, and the conversion status each asset
// carries.
//
// The Service orchestrates the submitting side of the conversion callback
// protocol. Submit moves an asset to converting with a compare-and-swap and
// posts the job to the processing endpoint; HandleCallback authenticates the
// HMAC token embedded in the callback URL and persists the reported outcome.
// Admission hard-links triage files into the library under their canonical
// base name, and DeleteAsset removes the record before unlinking artifacts.
package library
