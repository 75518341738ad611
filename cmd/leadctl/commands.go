package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"land_leads_app_go/config"
	"land_leads_app_go/services"
	"land_leads_app_go/services/campaigns"
	"land_leads_app_go/services/queue"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var newStorage = services.NewStorage

func listInquiries(ctx context.Context, store *queue.Store, campaign string, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, rec := range store.ReadAll(ctx, campaign) {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to write record %s: %w", rec.ID, err)
		}
	}
	return nil
}

type exportOptions struct {
	Archive     bool
	OutDir      string
	Concurrency int
	LinkTTL     time.Duration
	Storage     services.StorageProvider
	Now         func() time.Time
}

type exportResult struct {
	Campaign string
	Count    int
	Location string // File path or storage key
	Link     string // Signed download link of an archive, if the storage has one
}

// exportCampaigns writes one workbook per campaign. Results keep the order of slugs;
// a failing campaign does not stop the others and its error is returned at the end.
func exportCampaigns(ctx context.Context, registry *campaigns.Registry, store *queue.Store, slugs []string, opts exportOptions) ([]exportResult, error) {
	if len(slugs) == 0 {
		for _, c := range registry.List() {
			slugs = append(slugs, c.Slug)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = services.ArchiveLinkTTL
	}
	if !opts.Archive {
		if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	results := make([]exportResult, len(slugs))
	errs := make([]error, len(slugs))

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, slug := range slugs {
		g.Go(func() error {
			results[i], errs[i] = exportCampaign(ctx, registry, store, slug, opts)
			return nil
		})
	}
	g.Wait()

	var ok []exportResult
	for i, r := range results {
		if errs[i] == nil {
			ok = append(ok, r)
		}
	}
	return ok, errors.Join(errs...)
}

func exportCampaign(ctx context.Context, registry *campaigns.Registry, store *queue.Store, slug string, opts exportOptions) (exportResult, error) {
	camp, err := registry.Get(slug)
	if err != nil {
		return exportResult{}, err
	}

	records := store.ReadAll(ctx, camp.Slug)
	buf, err := services.BuildInquiriesWorkbook(camp.Slug, camp.Schema, records)
	if err != nil {
		return exportResult{}, fmt.Errorf("%s: %w", camp.Slug, err)
	}

	if opts.Archive {
		res, err := services.ArchiveInquiries(ctx, opts.Storage, camp.Slug, buf)
		if err != nil {
			return exportResult{}, err
		}
		link, err := opts.Storage.GetSignedURL(ctx, res.Key, opts.LinkTTL)
		if err != nil {
			return exportResult{}, fmt.Errorf("%s archived as %s: %w", camp.Slug, res.Key, err)
		}
		return exportResult{Campaign: camp.Slug, Count: len(records), Location: res.Key, Link: link}, nil
	}

	name := fmt.Sprintf("%s_inquiries_%s.xlsx", camp.Slug, opts.Now().UTC().Format("20060102"))
	path := filepath.Join(opts.OutDir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return exportResult{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return exportResult{Campaign: camp.Slug, Count: len(records), Location: path}, nil
}

// fetchArchive copies an archived workbook to w
func fetchArchive(ctx context.Context, storage services.StorageProvider, key string, w io.Writer) (int64, error) {
	body, _, err := storage.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return n, nil
}

// readPassword prompts twice without echo on a terminal and reads one line otherwise
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprint(prompt, "Confirm password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func hashPassword(password string, cost int) (string, error) {
	if err := services.ValidateAdminPassword(password); err != nil {
		return "", err
	}
	if cost < config.MinAdminPasswordCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("cost must be between %d and %d", config.MinAdminPasswordCost, bcrypt.MaxCost)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
