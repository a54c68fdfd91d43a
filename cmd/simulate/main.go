package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/salon-slot-booking/internal/api"
	"github.com/hackgods/salon-slot-booking/internal/booking"
	"github.com/hackgods/salon-slot-booking/internal/db"
)

type simConfig struct {
	BaseURL     string
	PostgresDSN string
	SalonID     string
	BarberID    string
	ServiceID   string
	Date        string
	Time        string
	Concurrency int
	Rounds      int
	Timeout     time.Duration
}

type fixture struct {
	salonID   uuid.UUID
	serviceID uuid.UUID
	barberID  uuid.UUID
	customers []uuid.UUID
}

type roundResult struct {
	selector  string
	created   int
	conflicts int
	other     map[int]int
	latencies []time.Duration
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := simConfig{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Fire concurrent bookings at one window and check that exactly one wins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	f.StringVar(&cfg.PostgresDSN, "dsn", os.Getenv("POSTGRES_DSN"), "Postgres DSN used to pick seeded salons and customers")
	f.StringVar(&cfg.SalonID, "salon", "", "salon id (picked from the database when empty)")
	f.StringVar(&cfg.BarberID, "barber", "", "barber id (first available staff when empty)")
	f.StringVar(&cfg.ServiceID, "service", "", "service id (picked from the database when empty)")
	f.StringVar(&cfg.Date, "date", time.Now().UTC().AddDate(0, 0, 2).Format(booking.DateFormat), "appointment date YYYY-MM-DD")
	f.StringVar(&cfg.Time, "time", "", "window start HH:MM (each round takes the next open window when empty)")
	f.IntVar(&cfg.Concurrency, "concurrency", 20, "simultaneous booking attempts per round")
	f.IntVar(&cfg.Rounds, "rounds", 1, "number of windows to contend for")
	f.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "per-request timeout")

	return cmd
}

func run(ctx context.Context, cfg simConfig) error {
	if cfg.Concurrency <= 0 {
		return errors.New("--concurrency must be > 0")
	}
	if cfg.Rounds <= 0 {
		return errors.New("--rounds must be > 0")
	}

	fx, err := loadFixture(ctx, cfg)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: cfg.Timeout}

	var results []roundResult
	for round := 0; round < cfg.Rounds; round++ {
		selector, start, barberID, err := pickWindow(ctx, client, cfg, fx)
		if err != nil {
			return fmt.Errorf("round %d: %w", round+1, err)
		}

		res, err := burst(ctx, client, cfg, fx, barberID, selector, start)
		if err != nil {
			return fmt.Errorf("round %d: %w", round+1, err)
		}
		results = append(results, res)
	}

	printReport(cfg, results)

	for _, r := range results {
		if r.created != 1 {
			return fmt.Errorf("window %s: expected exactly one booking, got %d", r.selector, r.created)
		}
	}
	return nil
}

// loadFixture resolves salon, service and customers either from flags or from
// the seeded database.
func loadFixture(ctx context.Context, cfg simConfig) (fixture, error) {
	var fx fixture
	var err error

	if cfg.SalonID != "" {
		if fx.salonID, err = uuid.Parse(cfg.SalonID); err != nil {
			return fx, fmt.Errorf("--salon: %w", err)
		}
	}
	if cfg.ServiceID != "" {
		if fx.serviceID, err = uuid.Parse(cfg.ServiceID); err != nil {
			return fx, fmt.Errorf("--service: %w", err)
		}
	}
	if cfg.BarberID != "" {
		if fx.barberID, err = uuid.Parse(cfg.BarberID); err != nil {
			return fx, fmt.Errorf("--barber: %w", err)
		}
	}

	if cfg.PostgresDSN == "" {
		if fx.salonID == uuid.Nil {
			return fx, errors.New("--salon is required without --dsn")
		}
		if fx.serviceID == uuid.Nil {
			fx.serviceID = uuid.New()
		}
		for i := 0; i < cfg.Concurrency; i++ {
			fx.customers = append(fx.customers, uuid.New())
		}
		return fx, nil
	}

	dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(dbCtx, cfg.PostgresDSN)
	if err != nil {
		return fx, fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if fx.salonID == uuid.Nil {
		if err := pool.QueryRow(dbCtx, `
			SELECT s.id FROM salons s
			WHERE s.opening_time IS NOT NULL
			  AND EXISTS (SELECT 1 FROM barbers b WHERE b.salon_id = s.id)
			ORDER BY s.created_at
			LIMIT 1
		`).Scan(&fx.salonID); err != nil {
			return fx, fmt.Errorf("pick salon: %w", err)
		}
	}
	if fx.serviceID == uuid.Nil {
		if err := pool.QueryRow(dbCtx, `
			SELECT id FROM services WHERE salon_id = $1 ORDER BY created_at LIMIT 1
		`, fx.salonID).Scan(&fx.serviceID); err != nil {
			return fx, fmt.Errorf("pick service: %w", err)
		}
	}

	fx.customers, err = loadCustomers(dbCtx, pool, cfg.Concurrency)
	if err != nil {
		return fx, err
	}
	if len(fx.customers) == 0 {
		return fx, errors.New("no customers seeded")
	}
	return fx, nil
}

func loadCustomers(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM customers ORDER BY random() LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// pickWindow asks the API for open windows and returns the requested one, or
// the first open window when no start time was given.
func pickWindow(ctx context.Context, client *http.Client, cfg simConfig, fx fixture) (string, string, uuid.UUID, error) {
	url := fmt.Sprintf("%s/salons/%s/windows?date=%s", cfg.BaseURL, fx.salonID, cfg.Date)
	if fx.barberID != uuid.Nil {
		url += "&staff_id=" + fx.barberID.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", uuid.Nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", uuid.Nil, fmt.Errorf("list windows: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", "", uuid.Nil, fmt.Errorf("list windows: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var windows api.WindowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&windows); err != nil {
		return "", "", uuid.Nil, fmt.Errorf("decode windows: %w", err)
	}

	for _, w := range windows.Windows {
		if cfg.Time != "" && w.StartTime != cfg.Time {
			continue
		}
		barberID := fx.barberID
		if barberID == uuid.Nil {
			if len(w.AvailableStaff) == 0 {
				continue
			}
			barberID = w.AvailableStaff[0].ID
		}
		return w.SlotID, w.StartTime, barberID, nil
	}
	return "", "", uuid.Nil, errors.New("no open window matches")
}

func burst(ctx context.Context, client *http.Client, cfg simConfig, fx fixture, barberID uuid.UUID, selector, start string) (roundResult, error) {
	res := roundResult{selector: selector, other: map[int]int{}}
	var mu sync.Mutex

	// Requests are built up front so the goroutines race on the POST alone.
	bodies := make([][]byte, cfg.Concurrency)
	for i := range bodies {
		body, err := json.Marshal(api.BookAppointmentRequest{
			CustomerID:      fx.customers[i%len(fx.customers)].String(),
			BarberID:        barberID.String(),
			SalonID:         fx.salonID.String(),
			ServiceID:       fx.serviceID.String(),
			SlotID:          selector,
			AppointmentDate: cfg.Date,
			AppointmentTime: start,
			Notes:           "load simulation",
		})
		if err != nil {
			return res, err
		}
		bodies[i] = body
	}

	startGate := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	for _, body := range bodies {
		g.Go(func() error {
			<-startGate

			req, err := http.NewRequestWithContext(gctx, http.MethodPost, cfg.BaseURL+"/appointments", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			began := time.Now()
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("post appointment: %w", err)
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			latency := time.Since(began)

			mu.Lock()
			defer mu.Unlock()
			res.latencies = append(res.latencies, latency)
			switch resp.StatusCode {
			case http.StatusCreated:
				res.created++
			case http.StatusConflict:
				res.conflicts++
			default:
				res.other[resp.StatusCode]++
			}
			return nil
		})
	}
	close(startGate)

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

func printReport(cfg simConfig, results []roundResult) {
	fmt.Println("SIMULATION REPORT")
	fmt.Printf("Date: %s  Concurrency: %d  Rounds: %d\n\n", cfg.Date, cfg.Concurrency, len(results))

	for _, r := range results {
		fmt.Printf("%s:\n", r.selector)
		fmt.Printf("  Created: %d\n", r.created)
		fmt.Printf("  Conflicts: %d\n", r.conflicts)
		for status, n := range r.other {
			fmt.Printf("  Status %d: %d\n", status, n)
		}
		if len(r.latencies) > 0 {
			sort.Slice(r.latencies, func(i, j int) bool { return r.latencies[i] < r.latencies[j] })
			p50 := r.latencies[len(r.latencies)*50/100]
			p95 := r.latencies[min(len(r.latencies)*95/100, len(r.latencies)-1)]
			fmt.Printf("  Latency: min=%s p50=%s p95=%s max=%s\n",
				r.latencies[0].Round(time.Millisecond), p50.Round(time.Millisecond),
				p95.Round(time.Millisecond), r.latencies[len(r.latencies)-1].Round(time.Millisecond))
		}
		fmt.Println()
	}
}
