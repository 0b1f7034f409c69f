package validator

// dangerousKeywords is the fixed blacklist applied to code-region tokens.
// Matching is whole-word and case-insensitive; the set itself is not
// configurable so a misconfigured deployment can never weaken it.
var dangerousKeywords = []string{
	"CREATE",
	"DROP",
	"INSERT",
	"UPDATE",
	"DELETE",
	"ALTER",
	"GRANT",
	"REVOKE",
	"TRUNCATE",
	"MERGE",
	"CALL",
	"EXECUTE",
	"COPY",
	"PUT",
	"GET",
	"UNLOAD",
}

// allowedLeadingWords are the statement-starting words the whitelist accepts.
var allowedLeadingWords = []string{
	"SELECT",
	"WITH",
}
