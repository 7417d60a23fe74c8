// Package views renders the HTML fragments returned to HTMX callers.
//
// The components are written in templ; run `templ generate` after editing
// a .templ file to refresh its _templ.go counterpart.
package views
