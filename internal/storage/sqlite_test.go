package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/molegis/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "db", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_Sessions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	id1, err := store.UpsertSession(ctx, 2025, models.SessionRegular)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := store.UpsertSession(ctx, 2025, models.SessionRegular)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("upsert should be idempotent: %s != %s", id1, id2)
	}
	if _, err := store.UpsertSession(ctx, 2024, models.SessionSpecial1); err != nil {
		t.Fatal(err)
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 || sessions[0].Year != 2025 {
		t.Errorf("ListSessions() = %+v", sessions)
	}

	if _, err := store.GetSession(ctx, 1999, models.SessionRegular); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession missing: err = %v, want ErrNotFound", err)
	}
	if _, err := store.UpsertSession(ctx, 0, models.SessionRegular); err == nil {
		t.Error("expected error for invalid year")
	}
}

func TestSQLiteStorage_Legislators(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	sessionID, _ := store.UpsertSession(ctx, 2025, models.SessionRegular)

	elected := 2020
	rep := &models.Legislator{Name: "Jane Smith", Role: models.RoleRepresentative, Party: "Republican", YearElected: &elected, IsActive: true}
	repID, updated, err := store.UpsertLegislator(ctx, rep)
	if err != nil {
		t.Fatal(err)
	}
	if updated {
		t.Error("first upsert should insert")
	}

	sen := &models.Legislator{Name: "Jane Smith", Role: models.RoleSenator, IsActive: true}
	senID, _, err := store.UpsertLegislator(ctx, sen)
	if err != nil {
		t.Fatal(err)
	}
	if senID == repID {
		t.Error("same name in another chamber should be a distinct legislator")
	}

	again, updated, err := store.UpsertLegislator(ctx, &models.Legislator{Name: "Jane Smith", Role: models.RoleRepresentative, PictureURL: "p.jpg", IsActive: true})
	if err != nil {
		t.Fatal(err)
	}
	if !updated || again != repID {
		t.Errorf("second upsert = (%s, %v), want (%s, true)", again, updated, repID)
	}

	slID, err := store.LinkLegislatorToSession(ctx, sessionID, repID, "151", "https://house.mo.gov/MemberDetails.aspx?district=151")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.LinkLegislatorToSession(ctx, sessionID, senID, "11", ""); err != nil {
		t.Fatal(err)
	}
	relinked, err := store.LinkLegislatorToSession(ctx, sessionID, repID, "151", "")
	if err != nil {
		t.Fatal(err)
	}
	if relinked != slID {
		t.Errorf("relink should keep id: %s != %s", relinked, slID)
	}

	tests := []struct {
		name string
		q    models.LegislatorLookup
		want string
	}{
		{"by district", models.LegislatorLookup{District: "151"}, slID},
		{"by profile", models.LegislatorLookup{ProfileURL: "https://house.mo.gov/MemberDetails.aspx?district=151"}, slID},
		{"by name and role", models.LegislatorLookup{Name: "jane smith", Role: models.RoleRepresentative}, slID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.LookupSessionLegislator(ctx, sessionID, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	senSL, err := store.LookupSessionLegislator(ctx, sessionID, models.LegislatorLookup{Name: "Jane Smith", Role: models.RoleSenator})
	if err != nil {
		t.Fatal(err)
	}
	if senSL == slID {
		t.Error("role filter should pick the senator")
	}

	if _, err := store.LookupSessionLegislator(ctx, sessionID, models.LegislatorLookup{District: "999"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing district: err = %v, want ErrNotFound", err)
	}
	if n, _ := store.CountSessionLegislators(ctx, sessionID); n != 2 {
		t.Errorf("CountSessionLegislators = %d, want 2", n)
	}
}

func seedBill(t *testing.T, store *SQLiteStorage) (string, *models.Bill) {
	t.Helper()
	ctx := context.Background()
	sessionID, err := store.UpsertSession(ctx, 2025, models.SessionRegular)
	if err != nil {
		t.Fatal(err)
	}
	primaryID, _, _ := store.UpsertLegislator(ctx, &models.Legislator{Name: "Alice Primary", Role: models.RoleRepresentative, IsActive: true})
	coID, _, _ := store.UpsertLegislator(ctx, &models.Legislator{Name: "Bob Co", Role: models.RoleRepresentative, IsActive: true})
	primarySL, _ := store.LinkLegislatorToSession(ctx, sessionID, primaryID, "1", "")
	coSL, _ := store.LinkLegislatorToSession(ctx, sessionID, coID, "2", "")

	day := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
	clock := "10:00:00"
	bill := &models.Bill{
		BillNumber:  "HB100",
		Description: "Modifies provisions relating to fireworks",
		Sponsors: []models.Sponsor{
			{SessionLegislatorID: primarySL, IsPrimary: true},
			{SessionLegislatorID: coSL},
		},
		Actions: []models.Action{
			{Date: &day, DateText: "01/08/2025", Description: "Introduced and Read First Time", SequenceOrder: 1},
			{DateText: "TBD", Description: "Read Second Time", SequenceOrder: 2},
		},
		Hearings: []models.Hearing{
			{CommitteeName: "Public Safety", Date: &day, Time: &clock, TimeText: "10:00 AM", Location: "HR 5"},
			{CommitteeName: "Public Safety", TimeText: "Upon Adjournment"},
			{CommitteeName: "Rules", TimeText: "TBA"},
		},
		Documents: []models.Document{
			{ExternalID: "0100H.01I", Title: "Introduced", DocType: models.DocTypeBillText, URL: "https://example.test/0100H.01I.pdf", ExtractedText: "Section A. text"},
			{ExternalID: "0100H.01F", Title: "Fiscal Note", URL: "https://example.test/0100H.01I.ORG.pdf", IsFiscalNote: true},
		},
	}
	if _, updated, err := store.UpsertBill(ctx, sessionID, bill); err != nil || updated {
		t.Fatalf("UpsertBill: updated=%v err=%v", updated, err)
	}
	return sessionID, bill
}

func TestSQLiteStorage_UpsertBill(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	sessionID, bill := seedBill(t, store)

	if bill.Title != bill.Description {
		t.Errorf("title should fall back to description, got %q", bill.Title)
	}

	got, err := store.GetBill(ctx, sessionID, "HB100")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Sponsors) != 2 || !got.Sponsors[0].IsPrimary || got.Sponsors[0].Name != "Alice Primary" {
		t.Errorf("sponsors = %+v", got.Sponsors)
	}
	if len(got.Actions) != 2 || got.Actions[0].SequenceOrder != 1 || got.Actions[1].Date != nil {
		t.Errorf("actions = %+v", got.Actions)
	}
	if got.Actions[0].Date == nil || !got.Actions[0].Date.Equal(time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("action date = %v", got.Actions[0].Date)
	}
	if len(got.Hearings) != 3 || got.Hearings[0].Time == nil || *got.Hearings[0].Time != "10:00:00" {
		t.Errorf("hearings = %+v", got.Hearings)
	}
	if got.Hearings[1].Time != nil || got.Hearings[1].TimeText != "Upon Adjournment" {
		t.Errorf("non-clock hearing time should be nil with text kept: %+v", got.Hearings[1])
	}
	if got.Hearings[0].CommitteeID != got.Hearings[1].CommitteeID {
		t.Error("committees should be get-or-create by name")
	}
	if len(got.Documents) != 2 || got.Documents[0].ID != bill.Documents[0].ID {
		t.Errorf("documents = %+v", got.Documents)
	}

	// Re-upsert with fewer children replaces them and keeps document ids by URL.
	firstDocID := bill.Documents[0].ID
	bill.Title = "New Title"
	bill.Actions = bill.Actions[:1]
	bill.Documents = bill.Documents[:1]
	bill.Documents[0].ID = ""
	id, updated, err := store.UpsertBill(ctx, sessionID, bill)
	if err != nil {
		t.Fatal(err)
	}
	if !updated || id != got.ID {
		t.Errorf("second upsert = (%s, %v), want (%s, true)", id, updated, got.ID)
	}
	got, _ = store.GetBill(ctx, sessionID, "HB100")
	if got.Title != "New Title" || len(got.Actions) != 1 || len(got.Documents) != 1 {
		t.Errorf("after re-upsert: title=%q actions=%d docs=%d", got.Title, len(got.Actions), len(got.Documents))
	}
	if got.Documents[0].ID != firstDocID {
		t.Errorf("document id changed: %s != %s", got.Documents[0].ID, firstDocID)
	}

	if n, _ := store.CountBills(ctx); n != 1 {
		t.Errorf("CountBills = %d, want 1", n)
	}
	bills, err := store.ListBills(ctx, sessionID, 0)
	if err != nil || len(bills) != 1 {
		t.Errorf("ListBills = %d, %v", len(bills), err)
	}
	if _, err := store.GetBill(ctx, sessionID, "HB999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing bill: err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_DocumentsAndMetadata(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	sessionID, bill := seedBill(t, store)

	billID, err := store.GetBillID(ctx, sessionID, "HB100")
	if err != nil || billID != bill.ID {
		t.Fatalf("GetBillID = %s, %v", billID, err)
	}

	has, err := store.HasExtractedText(ctx, billID)
	if err != nil || !has {
		t.Errorf("HasExtractedText = %v, %v; want true", has, err)
	}

	fiscal := bill.Documents[1]
	if err := store.SetDocumentText(ctx, fiscal.ID, "fiscal text"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkEmbeddingsGenerated(ctx, bill.Documents[0].ID); err != nil {
		t.Fatal(err)
	}
	docs, _ := store.GetBillDocuments(ctx, billID)
	if docs[1].ExtractedText != "fiscal text" || !docs[0].EmbeddingsGenerated {
		t.Errorf("documents = %+v", docs)
	}
	if err := store.MarkEmbeddingsGenerated(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing document: err = %v, want ErrNotFound", err)
	}

	meta, err := store.BillMetadata(ctx, billID)
	if err != nil {
		t.Fatal(err)
	}
	if meta.SessionYear != 2025 || meta.SessionCode != "R" || meta.BillNumber != "HB100" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.PrimarySponsor == nil || meta.PrimarySponsor.Name != "Alice Primary" {
		t.Errorf("primary sponsor = %+v", meta.PrimarySponsor)
	}
	if len(meta.Cosponsors) != 1 || meta.Cosponsors[0].Name != "Bob Co" {
		t.Errorf("cosponsors = %+v", meta.Cosponsors)
	}
	if len(meta.Committees) != 2 || meta.Committees[0].Name != "Public Safety" || meta.Committees[1].Name != "Rules" {
		t.Errorf("committees should be deduplicated in hearing order: %+v", meta.Committees)
	}
}

func TestSQLiteStorage_Embeddings(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_, bill := seedBill(t, store)

	chunks := []*models.EmbeddingChunk{
		{Content: "chunk zero", Embedding: []float32{1, 0, 0}, Metadata: models.ChunkMetadata{BillID: bill.ID, DocumentID: bill.Documents[0].ID, ChunkIndex: 0, SessionYear: 2025, SessionCode: "R", CosponsorNames: []string{"Bob Co"}}},
		{Content: "chunk one", Embedding: []float32{0, 1, 0}, Metadata: models.ChunkMetadata{BillID: bill.ID, DocumentID: bill.Documents[0].ID, ChunkIndex: 1, SessionYear: 2025, SessionCode: "R"}},
	}
	if err := store.StoreEmbeddings(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	if chunks[0].ID == "" {
		t.Fatal("ids should be assigned")
	}

	got, err := store.GetEmbedding(ctx, chunks[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "chunk zero" || len(got.Embedding) != 3 || got.Embedding[0] != 1 {
		t.Errorf("embedding = %+v", got)
	}
	if len(got.Metadata.CosponsorNames) != 1 || got.Metadata.CosponsorNames[0] != "Bob Co" {
		t.Errorf("metadata = %+v", got.Metadata)
	}

	page, err := store.ListEmbeddings(ctx, 1, 10)
	if err != nil || len(page) != 1 || page[0].ID != chunks[1].ID {
		t.Errorf("ListEmbeddings(1, 10) = %v, %v", page, err)
	}

	has, _ := store.HasEmbeddings(ctx, bill.ID)
	if !has {
		t.Error("HasEmbeddings should be true")
	}

	ids, err := store.DeleteEmbeddings(ctx, bill.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("deleted %d ids, want 2", len(ids))
	}
	if n, _ := store.CountEmbeddings(ctx); n != 0 {
		t.Errorf("CountEmbeddings = %d, want 0", n)
	}
	if _, err := store.GetEmbedding(ctx, chunks[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted embedding: err = %v, want ErrNotFound", err)
	}

	if err := store.StoreEmbeddings(ctx, []*models.EmbeddingChunk{{Content: "x"}}); err == nil {
		t.Error("expected error for chunk without embedding")
	}
}
