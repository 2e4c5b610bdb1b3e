package store

import (
	"context"
	"regexp"
	"strings"
)

var parenAliasPattern = regexp.MustCompile(`\s*\((?:aka|a\.k\.a\.?)\s+([^)]+)\)`)
var whitespacePattern = regexp.MustCompile(`\s+`)

// NormalizeProducerName is the pure transform named in spec §6's
// store surface. It lowercases, strips a leading "The ", pulls a
// parenthetical "(aka X)" out as an alias, and collapses whitespace,
// so "The Dr. Luke (aka Lukasz Gottwald)" and "dr. luke" both resolve
// to the same canonical key, "dr. luke". Surrounding whitespace is
// trimmed here as well.
func NormalizeProducerName(name string) (canonical string, alias string) {
	name = strings.TrimSpace(name)
	if m := parenAliasPattern.FindStringSubmatch(name); m != nil {
		alias = strings.ToLower(strings.TrimSpace(m[1]))
		name = parenAliasPattern.ReplaceAllString(name, "")
	}
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)
	lower = strings.TrimPrefix(lower, "the ")
	lower = whitespacePattern.ReplaceAllString(lower, " ")
	return strings.TrimSpace(lower), alias
}

func (p *Postgres) UpsertProducerCredit(ctx context.Context, canonicalName string, alias string, sourceCredit []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO producers (canonical_name, aliases, source_credits, track_count, updated_at)
		VALUES ($1, CASE WHEN $2 = '' THEN ARRAY[]::text[] ELSE ARRAY[$2] END, jsonb_build_array($3::jsonb), 1, NOW())
		ON CONFLICT (canonical_name) DO UPDATE
		SET aliases = CASE
				WHEN $2 = '' OR $2 = ANY(producers.aliases) THEN producers.aliases
				ELSE array_append(producers.aliases, $2)
			END,
			source_credits = producers.source_credits || jsonb_build_array($3::jsonb),
			track_count = producers.track_count + 1,
			updated_at = NOW()
	`, canonicalName, alias, sourceCredit)
	return err
}
