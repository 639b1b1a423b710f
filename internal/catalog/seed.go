package catalog

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/stellarsoft-tech/idaraos/internal/platform/db"
)

type seedModule struct {
	slug     string
	category string
}

type seedAction struct {
	slug string
}

// Catalog vocabulary. Order determines sort_order.
var seedModules = []seedModule{
	{slug: "people.person", category: "People"},
	{slug: "people.onboarding", category: "People"},
	{slug: "assets.inventory", category: "Assets"},
	{slug: "security.evidence", category: "Security"},
	{slug: "security.policies", category: "Security"},
	{slug: "documents.library", category: "Documents"},
	{slug: "workflows.tasks", category: "Workflows"},
	{slug: "settings.users", category: "Settings"},
	{slug: "settings.roles", category: "Settings"},
}

var seedActions = []seedAction{
	{slug: "view"},
	{slug: "create"},
	{slug: "edit"},
	{slug: "delete"},
	{slug: "export"},
	{slug: "approve"},
}

var titleCaser = cases.Title(language.English)

// labelFromSlug derives a display name from a slug, e.g.
// "security.evidence" becomes "Security Evidence".
func labelFromSlug(slug string) string {
	parts := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
	for i, p := range parts {
		parts[i] = titleCaser.String(p)
	}
	return strings.Join(parts, " ")
}

// EnsureCatalog idempotently seeds modules, actions, and their cross product
// of permissions. Safe to run on every boot; existing rows keep their ids.
func EnsureCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for i, m := range seedModules {
			if _, err := tx.Exec(ctx, `
				INSERT INTO modules (slug, name, category, sort_order, is_active)
				VALUES ($1, $2, $3, $4, TRUE)
				ON CONFLICT (slug) DO UPDATE SET category = EXCLUDED.category, sort_order = EXCLUDED.sort_order`,
				m.slug, labelFromSlug(m.slug), m.category, int32(i+1)); err != nil {
				return err
			}
		}
		for i, a := range seedActions {
			if _, err := tx.Exec(ctx, `
				INSERT INTO actions (slug, name, sort_order)
				VALUES ($1, $2, $3)
				ON CONFLICT (slug) DO UPDATE SET sort_order = EXCLUDED.sort_order`,
				a.slug, labelFromSlug(a.slug), int32(i+1)); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO permissions (module_id, action_id)
			SELECT m.id, a.id FROM modules m CROSS JOIN actions a
			ON CONFLICT (module_id, action_id) DO NOTHING`)
		return err
	})
}
