// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lorenzo-online/lorenzo/internal/auth"
	"github.com/lorenzo-online/lorenzo/internal/auth/postgres"
)

var _ = Describe("AccountRepository", Ordered, func() {
	var (
		ctx       context.Context
		container *tcpostgres.PostgresContainer
		pool      *pgxpool.Pool
		repo      *postgres.AccountRepository
		service   *auth.Service
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("lorenzo_test"),
			tcpostgres.WithUsername("lorenzo"),
			tcpostgres.WithPassword("lorenzo"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := postgres.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
		Expect(migrator.Close()).To(Succeed())

		pool, err = postgres.Connect(ctx, connStr)
		Expect(err).NotTo(HaveOccurred())
		repo = postgres.NewAccountRepository(pool)

		hasher, err := auth.NewArgon2idHasher(auth.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1})
		Expect(err).NotTo(HaveOccurred())
		service, err = auth.NewService(repo, hasher, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	It("registers and logs in", func() {
		ok, err := service.Register(ctx, "alice", "secret")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = service.Login(ctx, "ALICE", "secret")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("rejects a duplicate username regardless of case", func() {
		ok, err := service.Register(ctx, "Alice", "other")
		Expect(ok).To(BeFalse())
		Expect(err).To(MatchError(auth.ErrDuplicateUsername))
	})

	It("persists lockout counters", func() {
		_, err := service.Register(ctx, "bob", "secret")
		Expect(err).NotTo(HaveOccurred())

		for range auth.DefaultLockoutThreshold {
			ok, err := service.Login(ctx, "bob", "wrong")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		}

		account, err := repo.GetByUsername(ctx, "bob")
		Expect(err).NotTo(HaveOccurred())
		Expect(account.FailedAttempts).To(Equal(auth.DefaultLockoutThreshold))
		Expect(account.LockedUntil).NotTo(BeNil())

		_, err = service.Login(ctx, "bob", "secret")
		Expect(err).To(MatchError(auth.ErrAccountLocked))
	})

	It("reports a missing account", func() {
		_, err := repo.GetByUsername(ctx, "nobody")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
