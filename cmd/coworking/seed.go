package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/coworking-booking/internal/application"
	"github.com/example/coworking-booking/internal/persistence"
)

// seedFile is the YAML document accepted by the seed command.
type seedFile struct {
	Admin seedAdmin  `yaml:"admin"`
	Rooms []seedRoom `yaml:"rooms"`
}

type seedAdmin struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type seedRoom struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Capacity    int      `yaml:"capacity"`
	Type        string   `yaml:"type"`
	Amenities   []string `yaml:"amenities"`
	HourlyRate  float64  `yaml:"hourly_rate"`
}

type seedResult struct {
	AdminCreated  bool
	AdminPromoted bool
	RoomsCreated  int
	RoomsSkipped  int
}

func newSeedCommand(c *cli) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin account and rooms listed in a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := readSeedFile(path)
			if err != nil {
				return err
			}
			cfg, logger, err := c.bootstrap()
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := store.Close(); cerr != nil {
					logger.Error("failed to close storage", "error", cerr)
				}
			}()
			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}

			tokens := application.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL, time.Now)
			result, err := newSeeder(store, tokens, application.DefaultArgon2idParams, time.Now, logger).Seed(cmd.Context(), doc)
			if err != nil {
				return err
			}
			printSeedResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "seed.yaml", "path to the seed YAML file")
	return cmd
}

func readSeedFile(path string) (seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return seedFile{}, fmt.Errorf("read seed file: %w", err)
	}
	var doc seedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return seedFile{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return doc, nil
}

// seeder applies a seedFile through the application services so seeded
// records pass the same validation as API writes.
type seeder struct {
	store  persistence.Store
	users  *userRepositoryAdapter
	auth   *application.AuthService
	rooms  *application.RoomService
	now    func() time.Time
	logger *slog.Logger
}

func newSeeder(store persistence.Store, tokens *application.TokenIssuer, params application.Argon2idParams, now func() time.Time, logger *slog.Logger) *seeder {
	return &seeder{
		store: store,
		users: newUserRepositoryAdapter(store),
		auth: application.NewAuthServiceWithLogger(
			newCredentialStoreAdapter(store),
			tokens,
			application.NewPasswordHasher(params),
			application.VerifyPassword,
			uuid.NewString,
			now,
			logger,
		),
		rooms:  application.NewRoomServiceWithLogger(newRoomRepositoryAdapter(store), uuid.NewString, now, logger),
		now:    now,
		logger: logger,
	}
}

// Seed is idempotent. Rooms whose name already exists are skipped and an
// existing account with the admin email is promoted rather than recreated.
func (s *seeder) Seed(ctx context.Context, doc seedFile) (seedResult, error) {
	var result seedResult

	admin, created, err := s.ensureAdmin(ctx, doc.Admin)
	if err != nil {
		return result, err
	}
	result.AdminCreated = created
	if !created && admin.Role != application.RoleAdmin {
		admin.Role = application.RoleAdmin
		admin.UpdatedAt = s.now().UTC()
		promoted, err := s.users.UpdateUser(ctx, admin)
		if err != nil {
			return result, fmt.Errorf("promote %s: %w", admin.Email, err)
		}
		admin = promoted
		result.AdminPromoted = true
	}

	existing, err := s.store.ListRooms(ctx, true)
	if err != nil {
		return result, fmt.Errorf("list rooms: %w", err)
	}
	names := make(map[string]struct{}, len(existing))
	for _, room := range existing {
		names[strings.ToLower(room.Name)] = struct{}{}
	}

	principal := admin.Principal()
	for _, room := range doc.Rooms {
		key := strings.ToLower(strings.TrimSpace(room.Name))
		if _, ok := names[key]; ok {
			result.RoomsSkipped++
			continue
		}
		if _, err := s.rooms.CreateRoom(ctx, application.CreateRoomParams{Principal: principal, Input: room.input()}); err != nil {
			return result, fmt.Errorf("create room %q: %w", room.Name, err)
		}
		names[key] = struct{}{}
		result.RoomsCreated++
	}

	s.logger.InfoContext(ctx, "seed applied",
		"admin_created", result.AdminCreated,
		"rooms_created", result.RoomsCreated,
		"rooms_skipped", result.RoomsSkipped,
	)
	return result, nil
}

func (s *seeder) ensureAdmin(ctx context.Context, admin seedAdmin) (application.User, bool, error) {
	stored, err := s.store.GetUserByEmail(ctx, admin.Email)
	switch {
	case err == nil:
		return toApplicationUser(stored), false, nil
	case !errors.Is(err, persistence.ErrNotFound):
		return application.User{}, false, fmt.Errorf("look up admin: %w", err)
	}

	registered, err := s.auth.Register(ctx, application.RegisterParams{
		Username: admin.Username,
		Email:    admin.Email,
		Password: admin.Password,
	})
	if err != nil {
		return application.User{}, false, fmt.Errorf("register admin: %w", err)
	}

	user := registered.User
	user.Role = application.RoleAdmin
	user, err = s.users.UpdateUser(ctx, user)
	if err != nil {
		return application.User{}, false, fmt.Errorf("promote admin: %w", err)
	}
	return user, true, nil
}

func (r seedRoom) input() application.RoomInput {
	input := application.RoomInput{
		Name:        &r.Name,
		Description: &r.Description,
		Capacity:    &r.Capacity,
		Amenities:   r.Amenities,
		HourlyRate:  &r.HourlyRate,
	}
	if r.Type != "" {
		input.Type = &r.Type
	}
	return input
}

func printSeedResult(out io.Writer, result seedResult) {
	switch {
	case result.AdminCreated:
		fmt.Fprintln(out, "admin created")
	case result.AdminPromoted:
		fmt.Fprintln(out, "admin promoted")
	default:
		fmt.Fprintln(out, "admin already present")
	}
	fmt.Fprintf(out, "rooms created: %d, skipped: %d\n", result.RoomsCreated, result.RoomsSkipped)
}
