// Package inherit merges an item with its ancestor groups into a standalone
// EffectiveRequest.
//
// Merge rules:
//   - Auth: an explicit item auth wins; otherwise the nearest ancestor with
//     explicit auth (none, basic or bearer) decides
//   - Pre-scripts run outermost group first and the item last
//   - Post-scripts run the item first and the outermost group last
//   - Headers and variables are merged outer to inner; a repeated key keeps
//     the position where it was first seen and takes the last value
//
// Resolution never fails. Ancestors that are not groups are skipped.
package inherit
