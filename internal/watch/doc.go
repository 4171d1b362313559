// Package watch turns filesystem changes into partial run requests.
//
// Events flow from a Source (fsnotify, or a polling scanner when native
// watches are unavailable) through the Mapping, which names the tasks whose
// inputs match a changed path, into the Debouncer, which coalesces a burst of
// changes into one request. The Dispatcher runs requests one at a time and
// keeps at most one merged request queued behind the running one.
package watch
