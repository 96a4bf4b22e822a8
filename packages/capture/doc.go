// Package capture extracts values from ingested responses so later items
// in a run can reference them as {{name}}.
//
// A capture reads its value with the same subject syntax as checks:
// status, duration, "header X-Token", body.data.id and so on. Missing and
// null values are not captured.
package capture
