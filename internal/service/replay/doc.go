// Package replay publishes a finished match to the replay rendering service
// and opens the returned page in the default browser.
package replay
