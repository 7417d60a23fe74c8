// Package commands defines the coursedesk CLI.
//
// Commands
//
//   - validate FILE  Parse and auto-map a roster CSV, print validation errors
//   - import FILE    Validate, then run the simulated import with progress
//   - export         Write the roster, or a selection of it, as CSV
//   - migrate        Apply key-value store migrations
//
// Configuration comes from the same environment variables as the server
// (a .env file is honoured). Logs go to stderr; command output to stdout.
package commands
