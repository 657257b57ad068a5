package testsupport

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"pressline/internal/config"
	"pressline/internal/jobs"
	"pressline/internal/logging"
	"pressline/internal/store/sqlitestore"
	"pressline/internal/storeaccess"
	"pressline/internal/users"
)

// Password is the password given to users created by MustRegister.
const Password = "secret-pass"

// MustOpenStore opens a sqlitestore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sqlitestore.Store {
	t.Helper()

	st, err := sqlitestore.Open(cfg)
	if err != nil {
		t.Fatalf("sqlitestore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// MustOpenStack opens the configured backend with every service wired and
// registers cleanup. Passwords are hashed at the minimum bcrypt cost.
func MustOpenStack(t testing.TB, cfg *config.Config, opts ...storeaccess.Option) *storeaccess.Stack {
	t.Helper()

	opts = append([]storeaccess.Option{
		storeaccess.WithUserOptions(users.WithBcryptCost(bcrypt.MinCost)),
	}, opts...)
	stack, err := storeaccess.Open(context.Background(), cfg, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("storeaccess.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = stack.Close()
	})
	return stack
}

// MustRegister creates an operator with the shared test password.
func MustRegister(t testing.TB, dir *users.Directory, name, employeeID string) *users.User {
	t.Helper()

	user, err := dir.Register(context.Background(), users.RegisterInput{
		Name:       name,
		EmployeeID: employeeID,
		Password:   Password,
		Role:       users.RoleOperator,
	})
	if err != nil {
		t.Fatalf("register %s: %v", employeeID, err)
	}
	return user
}

// MustCreateJob creates a job on press through the service.
func MustCreateJob(t testing.TB, svc *jobs.Service, actor jobs.Actor, ot, press string) *jobs.View {
	t.Helper()

	view, err := svc.Create(context.Background(), jobs.CreateInput{
		OT:              ot,
		Client:          "Client " + ot,
		JobType:         "folding carton",
		QuantityPlanned: 1000,
		Press:           press,
	}, actor)
	if err != nil {
		t.Fatalf("create job %s: %v", ot, err)
	}
	return view
}
