// Package workflow relays requests to the external workflow engine.
package workflow
