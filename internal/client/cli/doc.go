// Package cli implements the interactive AuthKeeper command line client: a
// small REPL over services.AuthService with prompts for credentials and
// profile fields. Passwords are read without echo and wiped after use.
package cli
