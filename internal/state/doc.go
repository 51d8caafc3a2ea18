// Package state persists the small amount of day-scoped state choregate needs
// between invocations.
//
// Two flat JSON files are kept, each mapping an identity to the ISO calendar
// date (in the configured zone) of its last event:
//   - the completion file maps a child to the day chores were confirmed complete
//     after the cutoff hour;
//   - the action file maps a scheduled action key to the day it last succeeded.
//
// Files are loaded once per invocation, mutated in memory and written back with
// an atomic replace. A missing or corrupt file is treated as empty state.
// Stale dates from earlier days are harmless and never pruned, since lookups
// compare against today's date only.
package state
