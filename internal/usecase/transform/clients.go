package transform

import (
	"context"

	"mohassil-migrator/internal/domain/migration"
	"mohassil-migrator/pkg/calendar"
	"mohassil-migrator/pkg/wkb"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

const (
	clientRoleID         = 3
	egyptCountryID       = 63
	defaultMaritalStatus = 6
	defaultQualification = 8
	nationalIDDocument   = 1
	commercialDocument   = 2
	nationalIDValidYears = 8
)

type clientsTransformer struct {
	baseTransformer
}

func (t *clientsTransformer) Transform(ctx context.Context, in Input) (migration.Outcome, error) {
	row, src := in.Row, in.Source
	t.resolveReferences(ctx, migration.Clients, row, src)
	row["gender"] = codeIs(src["gender"], 1)

	user := migration.Dependency{
		Record: migration.Record{
			Table: "users",
			Values: migration.Row{
				"name":        row["name"],
				"national_id": row["national_id"],
				"branch_id":   row["branch_id"],
				"gender":      row["gender"],
				"created_at":  row["created_at"],
				"role_id":     clientRoleID,
			},
		},
		Column: "user_id",
		Children: []migration.Attachment{{
			Record: migration.Record{
				Table: "wallets",
				Values: migration.Row{
					"role_id":     clientRoleID,
					"currency_id": 1,
					"wallet_type": "cash",
					"amount":      0,
					"active":      true,
					"created_at":  row["created_at"],
				},
			},
			ParentColumn: "user_id",
		}},
	}

	row["is_guarantor"] = codeIs(src["client_status"], 0)
	row["address"] = migration.JoinParts(src["home_add_1"], src["home_add_2"], src["home_add_3"])
	row["birthplace_id"] = Governorate(row["national_id"])

	var lat, lon float64
	if migration.Truthy(src["home_geography"]) {
		p, err := wkb.Decode(src["home_geography"])
		if err != nil {
			t.log.Warn("home geography not decoded, using 0,0", zap.Any("client_key", src["client_key"]), zap.Error(err))
		} else {
			lat, lon = p.Lat, p.Lon
			if !p.InRange() {
				t.log.Warn("home geography out of range", zap.Any("client_key", src["client_key"]), zap.Float64("lat", lat), zap.Float64("lon", lon))
			}
		}
	}
	row["latitude"], row["approved_latitude"] = lat, lat
	row["longitude"], row["approved_longitude"] = lon, lon

	row["corporate_id"] = 0
	row["country_id"] = egyptCountryID
	row["display_name"] = row["name"]
	row["third_name"] = ""
	row["active"] = true
	row["status"] = "active"
	row["marital_status_id"] = orDefault(row["marital_status_id"], defaultMaritalStatus)
	row["qualification_id"] = orDefault(row["qualification_id"], defaultQualification)

	out := migration.InsertRow(row)
	out.Prepend = []migration.Dependency{user}

	if !migration.Truthy(row["national_id"]) {
		t.log.Warn("client has no national id, profiles not created", zap.Any("client_key", src["client_key"]))
		return out, nil
	}
	out.Attach = t.profiles(ctx, row, src)
	return out, nil
}

// profiles builds the national id and commercial profiles and the home
// location of a client from its legacy business record.
func (t *clientsTransformer) profiles(ctx context.Context, row migration.Row, src migration.SourceRow) []migration.Attachment {
	info := t.lookup.ResolveSource(ctx, t.legacyTable("c1_client_info_table"),
		sq.Eq{"client_key": migration.AsString(src["client_key"])},
		"bus_add_1", "bus_add_2", "bus_add_3", "bus_name", "id_date")
	if info == nil {
		t.log.Warn("client business record not found", zap.Any("client_key", src["client_key"]))
		info = migration.Row{}
	}

	var issuedAt, expiresAt any
	if issued, ok := migration.AsTime(info["id_date"]); ok {
		issuedAt = issued
		expiresAt = calendar.AddYearsClamped(issued, nationalIDValidYears)
	}

	return []migration.Attachment{
		{
			Record: migration.Record{
				Table: "profiles",
				Values: migration.Row{
					"document_type_id":    nationalIDDocument,
					"document_id":         row["national_id"],
					"document_issued_at":  issuedAt,
					"document_expires_at": expiresAt,
					"profileable_type":    migration.ClientMorph,
				},
			},
			ParentColumn: "profileable_id",
		},
		{
			Record: migration.Record{
				Table: "profiles",
				Values: migration.Row{
					"document_type_id": commercialDocument,
					"career":           migration.Normalize(info["bus_name"]),
					"employer_address": migration.JoinParts(info["bus_add_1"], info["bus_add_2"], info["bus_add_3"]),
					"profileable_type": migration.ClientMorph,
				},
			},
			ParentColumn: "profileable_id",
		},
		{
			Record: migration.Record{
				Table: "locations",
				Values: migration.Row{
					"latitude":          row["latitude"],
					"longitude":         row["longitude"],
					"locationable_type": migration.ClientMorph,
					"active":            1,
					"role_id":           clientRoleID,
				},
			},
			ParentColumn: "locationable_id",
		},
	}
}
