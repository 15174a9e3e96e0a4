// Package cli holds the terminal side of vitals: the interactive prompter
// used by the sign-in gate, progress spinners, table and structured output,
// and the user-facing error types that cmd maps to exit codes.
//
// Errors carry the next step the user can take, for example:
//
//	Sign-in required
//
//	To sign in, run:
//	  vitals auth login
package cli
