package main

import (
	"context"
	"database/sql"
	"time"

	"shepherd/internal/audit"
	"shepherd/internal/checkin/attendance"
	"shepherd/internal/checkin/checkout"
	"shepherd/internal/checkin/label"
	"shepherd/internal/checkin/models"
	"shepherd/internal/checkin/occurrence"
	"shepherd/internal/checkin/securitycode"
	attendancestore "shepherd/internal/checkin/store/attendance"
	codestore "shepherd/internal/checkin/store/code"
	directorystore "shepherd/internal/checkin/store/directory"
	occurrencestore "shepherd/internal/checkin/store/occurrence"
	pickupstore "shepherd/internal/checkin/store/pickup"
	submissionstore "shepherd/internal/checkin/store/submission"
	templatestore "shepherd/internal/checkin/store/template"
	"shepherd/internal/device"
	devicestore "shepherd/internal/device/store"
	"shepherd/pkg/platform/tx"
)

// directory is the read side of the external people/group directory.
type directory interface {
	attendance.Directory
	label.Directory
	Snapshot(ctx context.Context) ([]models.FamilyResult, error)
}

// outbox accepts audit events and feeds the Kafka relay.
type outbox interface {
	audit.Outbox
	audit.RelaySource
}

type occurrenceStore interface {
	occurrence.Store
	label.OccurrenceReader
}

type backends struct {
	runner      tx.Runner
	occurrences occurrenceStore
	codes       securitycode.Store
	attendance  attendance.Store
	submissions attendance.SubmissionStore
	pickups     checkout.PickupStore
	templates   label.TemplateStore
	directory   directory
	devices     device.Store
	outbox      outbox
	// phoneNameSearch answers searches from SQL when the postgres backend is selected.
	phoneNameSearch *directorystore.PostgresStore
}

func memoryBackends() *backends {
	return &backends{
		runner:      tx.NewMemoryRunner(),
		occurrences: occurrencestore.NewInMemory(),
		codes:       codestore.NewInMemory(),
		attendance:  attendancestore.NewInMemory(),
		submissions: submissionstore.NewInMemory(),
		pickups:     pickupstore.NewInMemory(),
		templates:   templatestore.NewInMemory(),
		directory:   directorystore.NewInMemory(),
		devices:     devicestore.NewInMemory(),
		outbox:      audit.NewInMemoryOutbox(),
	}
}

func postgresBackends(db *sql.DB) *backends {
	dir := directorystore.NewPostgres(db)
	return &backends{
		runner:          tx.NewPostgresRunner(db),
		occurrences:     occurrencestore.NewPostgres(db),
		codes:           codestore.NewPostgres(db),
		attendance:      attendancestore.NewPostgres(db),
		submissions:     submissionstore.NewPostgres(db),
		pickups:         pickupstore.NewPostgres(db),
		templates:       templatestore.NewPostgres(db),
		directory:       dir,
		devices:         devicestore.NewPostgres(db),
		outbox:          audit.NewPostgresOutbox(db),
		phoneNameSearch: dir,
	}
}

const snapshotTimeout = 30 * time.Second
