package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ChangeChannel is the NOTIFY channel fed by the kyc_submissions row trigger.
const ChangeChannel = "kyc_submissions_changed"

type snapshotLister interface {
	ListSubmissions(ctx context.Context) ([]Submission, error)
}

type listenConn interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Listener turns change notifications on the collection into full snapshots.
type Listener struct {
	databaseURL string
	lister      snapshotLister
	logger      *zap.Logger
	connect     func(ctx context.Context, databaseURL string) (listenConn, error)
}

func NewListener(databaseURL string, lister snapshotLister, logger *zap.Logger) *Listener {
	return &Listener{
		databaseURL: databaseURL,
		lister:      lister,
		logger:      logger,
		connect:     connectListener,
	}
}

func connectListener(ctx context.Context, databaseURL string) (listenConn, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}
	return conn, nil
}

// Run delivers the current snapshot, then a fresh snapshot after every change, until ctx
// is cancelled. Any other failure ends the subscription and is returned; the caller keeps
// whatever it last received.
func (l *Listener) Run(ctx context.Context, onSnapshot func([]Submission)) error {
	conn, err := l.connect(ctx, l.databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		// the subscription context is usually already cancelled here
		_ = conn.Close(context.Background())
	}()

	if err := l.deliver(ctx, onSnapshot); err != nil {
		return err
	}

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.logger.Debug("submission changed",
			zap.String("channel", notification.Channel),
			zap.String("id", notification.Payload),
		)
		if err := l.deliver(ctx, onSnapshot); err != nil {
			return err
		}
	}
}

func (l *Listener) deliver(ctx context.Context, onSnapshot func([]Submission)) error {
	records, err := l.lister.ListSubmissions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("load snapshot: %w", err)
	}
	onSnapshot(records)
	return nil
}
