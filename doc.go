// Package telltale implements a small web application where people register
// (username/password or Google sign-in) and anonymously share text secrets.
//
// # Architecture
//
// User: one account, resolvable by exactly one authentication path: a
// username plus bcrypt password hash for local accounts, or a Google account
// id for OAuth accounts. Each user owns an ordered collection of secret
// strings.
//
// Session: server-side state managed by scs. The browser only ever holds an
// opaque session token; the bound user id lives in the session store. Login
// rotates the token and binds the user id, logout destroys the session.
//
// Secrets: the public feed shows every non-empty secret collection without
// any identity fields. Owners append and remove entries on their own
// collection; removing a text that is not present is an error, not a no-op.
//
// # Basic Usage
//
// Pick a store backend and hand it to NewApp:
//
//	cfg, err := telltale.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := stores.NewFSUserStore(cfg.StoragePath)
//	app := telltale.NewApp(cfg, store)
//	http.ListenAndServe(cfg.HTTPAddr, app.Handler())
//
// # Store Implementations
//
// stores/mongo is the primary backend (one document per user). stores/gorm
// targets relational databases and stores provides a JSON-file store for
// development and tests. All three satisfy the UserStore interface in this
// package.
//
// # Security
//
// Passwords are hashed with bcrypt at default cost; verification uses
// bcrypt's constant-time comparison and reports the same error for an
// unknown username and a wrong password. The Google flow carries a random
// state cookie checked on the callback. API access tokens are HS256 JWTs
// signed with the configured session secret; they are separate from browser
// sessions and only issued on explicit request.
package telltale
