// Package dive owns the analysis core for single freediving descents.
//
// Responsibilities: phase segmentation of per-second depth traces,
// feature extraction, rule-based discipline and lung-volume
// classification, label reconciliation, and the per-user statistical
// baseline with its calibration state machine.
//
// A missing or uncalibrated baseline is never an error: rules that
// need one contribute no evidence, so results degrade to lower
// confidence (possibly an unknown label) instead of failing. The only
// structural error is InvalidTraceError for traces too short or too
// shallow to segment.
//
// Everything in this package is a pure function over immutable inputs.
// No SQL/database code is allowed here; persistence of the canonical
// baseline lives in internal/divedb.
package dive
