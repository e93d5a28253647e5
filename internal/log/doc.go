// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// Site configurations carry cookies and authorization headers, and crawled
// URLs may carry tokens in their query strings. The SecureHandler masks:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - values whose keys name a secret (password, token, credential)
//   - values that look like secrets (JWTs, bearer and basic credentials)
//   - URL passwords and token-like query parameters, keeping the rest of the URL
//
// # Usage
//
//	logger := log.New(os.Stderr, verbose, jsonFormat)
//	logger.Info("crawling seed",
//	    "seed", "https://acme.test/?token=abc", // logged as token=***REDACTED***
//	    "cookie", "session=abc123",             // masked entirely
//	)
//	slog.SetDefault(logger)
package log
