package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/api"
	"github.com/dmitrijs2005/authkeeper/internal/client/client"
)

func (a *App) Profile(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	p, err := a.authService.Profile(ctx)
	if err != nil {
		return err
	}
	printProfile(a.out, p)
	return nil
}

// Update prompts for username, name and phone. Blank answers leave the field
// unchanged.
func (a *App) Update(ctx context.Context) error {
	if !a.isLoggedIn() {
		return client.ErrNotSignedIn
	}

	username, err := getSimpleText(a.reader, "New username (blank to keep)", a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "New name (blank to keep)", a.out)
	if err != nil {
		return err
	}
	phone, err := getSimpleText(a.reader, "New phone (blank to keep)", a.out)
	if err != nil {
		return err
	}

	req := &api.UpdateProfileRequest{Username: optional(username), Name: optional(name), Phone: optional(phone)}
	if req.Username == nil && req.Name == nil && req.Phone == nil {
		fmt.Fprintln(a.out, "Nothing to update")
		return nil
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	p, err := a.authService.UpdateProfile(ctx, req)
	if err != nil {
		return err
	}
	printProfile(a.out, p)
	return nil
}

// Status prints who is signed in and whether the server answers.
func (a *App) Status(ctx context.Context) error {
	if email := a.authService.Status(); email != "" {
		fmt.Fprintf(a.out, "Signed in as %s\n", email)
	} else {
		fmt.Fprintln(a.out, "Not signed in")
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.Ping(ctx); err != nil {
		fmt.Fprintf(a.out, "Server: %s\n", describe(err))
		return nil
	}
	fmt.Fprintln(a.out, "Server: online")
	return nil
}

func printProfile(w io.Writer, p *api.Profile) {
	fmt.Fprintf(w, "ID:       %s\n", p.ID)
	fmt.Fprintf(w, "Email:    %s\n", p.Email)
	if p.Username != nil {
		fmt.Fprintf(w, "Username: %s\n", *p.Username)
	}
	if p.Name != nil {
		fmt.Fprintf(w, "Name:     %s\n", *p.Name)
	}
	if p.Phone != nil {
		fmt.Fprintf(w, "Phone:    %s\n", *p.Phone)
	}
	fmt.Fprintf(w, "Active:   %t\n", p.IsActive)
	fmt.Fprintf(w, "Created:  %s\n", p.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:  %s\n", p.UpdatedAt.Format(time.RFC3339))
}
