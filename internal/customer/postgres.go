// Package customer reads customer, billing and payment data from the
// utility's billing database.
package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/user/tirtabot/internal/types"
)

var tracer = otel.Tracer("tirtabot.internal.customer")

var _ types.CustomerStore = (*Store)(nil)

// Store is a read-only view of the billing tables. The schema belongs to
// the billing system; only SELECTs are issued.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("customer: sql db required")
	}
	return &Store{db: db}
}

const (
	selectCustomerSQL = `
		SELECT a.pel_no, a.pel_nama, a.pel_alamat, e.kel_ket, f.kec_ket, a.dkd_kd,
			c.gol_ket, d.um_ukuran, b.kps_ket
		FROM tm_pelanggan a
		JOIN tr_kondisi_ps b ON b.kps_kode = a.kps_kode
		JOIN tr_gol c ON c.gol_kode = a.gol_kode
		JOIN tr_ukuranmeter d ON d.um_kode = a.um_kode
		JOIN tr_kelurahan e ON e.kel_kode = a.kel_kode
		JOIN tr_kecamatan f ON f.kec_kode = e.kec_kode
		WHERE a.pel_no = $1`

	checkCustomerSQL = `SELECT EXISTS (SELECT 1 FROM tm_pelanggan WHERE pel_no = $1)`

	// Penalty is computed by the billing database; total includes it.
	selectOpenBillsSQL = `
		SELECT rek_thn, rek_bln, rek_stankini - rek_stanlalu,
			rek_uangair, rek_adm + rek_meter,
			getdenda(rek_total, rek_bln, rek_thn, rek_gol),
			getdenda(rek_total, rek_bln, rek_thn, rek_gol) + rek_total
		FROM tm_rekening
		WHERE rek_sts = 1 AND rek_byr_sts = 0 AND pel_no = $1
		ORDER BY rek_thn, rek_bln`

	selectPaymentsSQL = `
		SELECT a.rek_thn, a.rek_bln, a.rek_stankini - a.rek_stanlalu,
			b.byr_total, b.byr_tgl, c.kar_nama
		FROM tm_rekening a
		JOIN tm_pembayaran b ON b.rek_nomor = a.rek_nomor AND b.byr_sts > 0
		JOIN tm_karyawan c ON c.kar_id = b.kar_id
		WHERE a.rek_sts = 1 AND a.pel_no = $1
		ORDER BY a.rek_nomor DESC
		LIMIT $2`
)

func startSpan(ctx context.Context, name, number string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(attribute.String("tirtabot.customer.number", number))
	return ctx, span
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// GetCustomer returns nil without error when number is unknown.
func (s *Store) GetCustomer(ctx context.Context, number string) (*types.Customer, error) {
	ctx, span := startSpan(ctx, "customer.get", number)
	defer span.End()

	var c types.Customer
	err := s.db.QueryRowContext(ctx, selectCustomerSQL, number).Scan(
		&c.Number, &c.Name, &c.Address, &c.Kelurahan, &c.Kecamatan,
		&c.ReadRoute, &c.Golongan, &c.MeterSize, &c.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fail(span, fmt.Errorf("customer: select customer: %w", err))
	}
	return &c, nil
}

func (s *Store) CheckCustomer(ctx context.Context, number string) (bool, error) {
	ctx, span := startSpan(ctx, "customer.check", number)
	defer span.End()

	var exists bool
	if err := s.db.QueryRowContext(ctx, checkCustomerSQL, number).Scan(&exists); err != nil {
		return false, fail(span, fmt.Errorf("customer: check customer: %w", err))
	}
	span.SetAttributes(attribute.Bool("tirtabot.customer.exists", exists))
	return exists, nil
}

// OpenBills lists unpaid bills oldest first.
func (s *Store) OpenBills(ctx context.Context, number string) ([]types.Bill, error) {
	ctx, span := startSpan(ctx, "customer.open_bills", number)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, selectOpenBillsSQL, number)
	if err != nil {
		return nil, fail(span, fmt.Errorf("customer: select open bills: %w", err))
	}
	defer rows.Close()

	var bills []types.Bill
	for rows.Next() {
		var b types.Bill
		if err := rows.Scan(&b.Year, &b.Month, &b.Usage, &b.WaterCharge, &b.FixedCharge, &b.Penalty, &b.Total); err != nil {
			return nil, fail(span, fmt.Errorf("customer: scan bill: %w", err))
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("customer: iterate bills: %w", err))
	}
	span.SetAttributes(attribute.Int("tirtabot.customer.bills", len(bills)))
	return bills, nil
}

// RecentPayments lists at most limit payments, newest billing period first.
func (s *Store) RecentPayments(ctx context.Context, number string, limit int) ([]types.Payment, error) {
	ctx, span := startSpan(ctx, "customer.recent_payments", number)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, selectPaymentsSQL, number, limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("customer: select payments: %w", err))
	}
	defer rows.Close()

	var payments []types.Payment
	for rows.Next() {
		var (
			p      types.Payment
			paidAt time.Time
		)
		if err := rows.Scan(&p.Year, &p.Month, &p.Usage, &p.Amount, &paidAt, &p.Cashier); err != nil {
			return nil, fail(span, fmt.Errorf("customer: scan payment: %w", err))
		}
		p.PaidAt = paidAt
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("customer: iterate payments: %w", err))
	}
	span.SetAttributes(attribute.Int("tirtabot.customer.payments", len(payments)))
	return payments, nil
}
