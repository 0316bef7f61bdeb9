package app

import (
	"net/url"
	"strings"
)

// postgresTarget is a resolved connection string plus the bits the
// tracer and the startup log need.
type postgresTarget struct {
	DSN      string
	Name     string
	Redacted string
}

func resolvePostgresTarget(raw string, disablePreparedBinaryResult bool) postgresTarget {
	raw = strings.TrimSpace(raw)
	target := postgresTarget{DSN: raw, Redacted: raw}

	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil || parsed.Scheme == "" {
		// keyword/value form: host=... dbname=...
		target.Name = keywordValue(raw, "dbname")
		target.Redacted = redactKeywordPassword(raw)
		return target
	}

	target.Name = strings.TrimSpace(strings.TrimPrefix(parsed.Path, "/"))
	if disablePreparedBinaryResult {
		query := parsed.Query()
		if query.Get("disable_prepared_binary_result") == "" {
			query.Set("disable_prepared_binary_result", "yes")
			parsed.RawQuery = query.Encode()
		}
		target.DSN = parsed.String()
	}
	target.Redacted = parsed.Redacted()
	return target
}

func keywordValue(dsn, key string) string {
	prefix := key + "="
	for _, token := range strings.Fields(dsn) {
		if strings.HasPrefix(token, prefix) {
			return strings.Trim(strings.TrimPrefix(token, prefix), `"'`)
		}
	}
	return ""
}

func redactKeywordPassword(dsn string) string {
	fields := strings.Fields(dsn)
	for i, token := range fields {
		if strings.HasPrefix(token, "password=") {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}
