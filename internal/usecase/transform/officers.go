package transform

import (
	"context"
	"strings"

	"mohassil-migrator/internal/domain/migration"
)

const officerRoleID = 60

type officersTransformer struct {
	baseTransformer
}

func (t *officersTransformer) Transform(ctx context.Context, in Input) (migration.Outcome, error) {
	row := in.Row
	t.resolveReferences(ctx, migration.Officers, row, in.Source)

	if has(row, "name") {
		local := strings.ReplaceAll(strings.ToLower(migration.AsString(row["name"])), " ", ".")
		row["email"] = t.email(local)
	}
	row["gender"] = codeIs(row["gender"], 1)
	row["role_id"] = officerRoleID

	out := migration.InsertRow(row)
	out.Attach = []migration.Attachment{{
		Record: migration.Record{
			Table: "wallets",
			Values: migration.Row{
				"role_id":     officerRoleID,
				"currency_id": 1,
				"wallet_type": "cash",
				"amount":      0,
				"active":      true,
			},
		},
		ParentColumn: "user_id",
	}}
	return out, nil
}
