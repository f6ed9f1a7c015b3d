// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/lorenzo-online/lorenzo/internal/auth"
	"github.com/lorenzo-online/lorenzo/internal/core"
	"github.com/lorenzo-online/lorenzo/internal/game"
	"github.com/lorenzo-online/lorenzo/internal/protocol"
	"github.com/lorenzo-online/lorenzo/internal/transport"
	"github.com/lorenzo-online/lorenzo/internal/transport/grpcbind"
	"github.com/lorenzo-online/lorenzo/internal/transport/socket"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// binding starts one transport's server and dials clients for it.
type binding struct {
	name  string
	start func(c transport.Core) (addr string, stop func())
	dial  func(addr, version string) transport.Binding
}

var grpcBinding = binding{
	name: "grpc",
	start: func(c transport.Core) (string, func()) {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		srv := grpcbind.NewServer(c, grpcbind.ServerConfig{Logger: quiet})
		served := make(chan struct{})
		go func() {
			defer close(served)
			_ = srv.Serve(lis)
		}()
		var once sync.Once
		return lis.Addr().String(), func() {
			once.Do(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				srv.Stop(ctx)
				<-served
			})
		}
	},
	dial: func(addr, version string) transport.Binding {
		c, err := grpcbind.NewClient(grpcbind.ClientConfig{Address: addr, Version: version, Logger: quiet})
		Expect(err).NotTo(HaveOccurred())
		return c
	},
}

var socketBinding = binding{
	name: "socket",
	start: func(c transport.Core) (string, func()) {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		srv := socket.NewServer("", c, quiet)
		ctx, cancel := context.WithCancel(context.Background())
		served := make(chan struct{})
		go func() {
			defer close(served)
			_ = srv.Serve(ctx, lis)
		}()
		return lis.Addr().String(), func() {
			cancel()
			<-served
		}
	},
	dial: func(addr, version string) transport.Binding {
		c, err := socket.NewClient(socket.ClientConfig{Address: addr, Version: version, Logger: quiet})
		Expect(err).NotTo(HaveOccurred())
		return c
	},
}

func newCore() *core.Server {
	cat, err := game.DefaultCatalog()
	Expect(err).NotTo(HaveOccurred())
	hasher, err := auth.NewArgon2idHasher(auth.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1})
	Expect(err).NotTo(HaveOccurred())
	creds, err := auth.NewService(auth.NewMemoryRepository(), hasher, nil, auth.WithLogger(quiet))
	Expect(err).NotTo(HaveOccurred())

	srv, err := core.NewServer(core.Config{
		Catalog:         cat,
		Credentials:     creds,
		PlayersPerMatch: 2,
		TurnTimeout:     time.Minute,
		Logger:          quiet,
		Seed:            func() uint64 { return 42 },
	})
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(srv.Shutdown(ctx)).To(Succeed())
	})
	return srv
}

// recorder is an Observer keeping everything it is told.
type recorder struct {
	mu          sync.Mutex
	got         []protocol.Notification
	disconnects []error
}

func (r *recorder) add(n protocol.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recorder) OnLobby(n protocol.LobbyNotification)                           { r.add(n) }
func (r *recorder) OnModelUpdate(n protocol.ModelUpdate)                           { r.add(n) }
func (r *recorder) OnTurnEnabled(n protocol.TurnEnabled)                           { r.add(n) }
func (r *recorder) OnTurnDisabled(n protocol.TurnDisabled)                         { r.add(n) }
func (r *recorder) OnTimeoutExpired(n protocol.TimeoutExpired)                     { r.add(n) }
func (r *recorder) OnImmediateActionAvailable(n protocol.ImmediateActionAvailable) { r.add(n) }
func (r *recorder) OnActionPerformed(n protocol.ActionPerformed)                   { r.add(n) }
func (r *recorder) OnActionRefused(n protocol.ActionRefused)                       { r.add(n) }
func (r *recorder) OnMatchEnded(n protocol.MatchEnded)                             { r.add(n) }
func (r *recorder) OnLoginSucceeded(n protocol.LoginSucceeded)                     { r.add(n) }
func (r *recorder) OnLoginFailed(n protocol.LoginFailed)                           { r.add(n) }
func (r *recorder) OnRegistrationSucceeded(n protocol.RegistrationSucceeded)       { r.add(n) }
func (r *recorder) OnRegistrationFailed(n protocol.RegistrationFailed)             { r.add(n) }

func (r *recorder) OnDisconnection(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects = append(r.disconnects, err)
}

func (r *recorder) kinds() []protocol.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.NotificationKind, len(r.got))
	for i, n := range r.got {
		out[i] = n.Kind()
	}
	return out
}

func (r *recorder) first(kind protocol.NotificationKind) protocol.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.got {
		if n.Kind() == kind {
			return n
		}
	}
	return nil
}

func (r *recorder) lobby(typ string) func() int {
	return func() int {
		r.mu.Lock()
		defer r.mu.Unlock()
		count := 0
		for _, n := range r.got {
			if l, ok := n.(protocol.LobbyNotification); ok && l.Type == typ {
				count++
			}
		}
		return count
	}
}

func (r *recorder) disconnections() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.disconnects...)
}

func (r *recorder) await(kind protocol.NotificationKind) protocol.Notification {
	GinkgoHelper()
	Eventually(r.kinds).WithTimeout(2 * time.Second).Should(ContainElement(kind))
	return r.first(kind)
}

// player connects and registers username over b.
func player(b binding, addr, username string) (transport.Binding, *recorder) {
	GinkgoHelper()
	client := b.dial(addr, protocol.Version)
	rec := &recorder{}
	client.AddObserver(rec)
	DeferCleanup(client.Close)

	ctx := context.Background()
	_, err := client.Connect(ctx)
	Expect(err).NotTo(HaveOccurred())
	Expect(client.Register(ctx, transport.Credentials{Username: username, Password: "secret"})).To(Succeed())
	rec.await(protocol.KindRegistrationSucceeded)
	return client, rec
}

func bindingContract(b binding) {
	var (
		ctx  context.Context
		srv  *core.Server
		addr string
		stop func()
	)

	BeforeEach(func() {
		ctx = context.Background()
		srv = newCore()
		addr, stop = b.start(srv)
		DeferCleanup(stop)
	})

	It("returns a session token on connect", func() {
		client := b.dial(addr, protocol.Version)
		DeferCleanup(client.Close)

		token, err := client.Connect(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(HaveLen(26))
	})

	It("fails fast before connecting", func() {
		client := b.dial(addr, protocol.Version)

		err := client.Login(ctx, transport.Credentials{Username: "alice", Password: "secret"})
		Expect(errors.Is(err, transport.ErrNotConnected)).To(BeTrue())
		err = client.PerformAction(ctx, protocol.RollDice{})
		Expect(errors.Is(err, transport.ErrNotConnected)).To(BeTrue())
	})

	It("fails fast when acting before login", func() {
		client := b.dial(addr, protocol.Version)
		DeferCleanup(client.Close)
		_, err := client.Connect(ctx)
		Expect(err).NotTo(HaveOccurred())

		err = client.PerformAction(ctx, protocol.RollDice{})
		Expect(errors.Is(err, transport.ErrNotAuthenticated)).To(BeTrue())
	})

	It("refuses incompatible protocol versions", func() {
		client := b.dial(addr, "0.1.0")
		_, err := client.Connect(ctx)
		Expect(transport.ErrorCode(err)).To(Equal(transport.CodeIncompatibleVersion))
	})

	It("reports an unreachable server as a connection error", func() {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		dead := lis.Addr().String()
		Expect(lis.Close()).To(Succeed())

		client := b.dial(dead, protocol.Version)
		_, err = client.Connect(ctx)
		Expect(transport.ErrorCode(err)).To(Equal(transport.CodeConnectionFailed))
	})

	It("delivers login results as notifications", func() {
		first, _ := player(b, addr, "alice")
		Expect(first.Close()).To(Succeed())
		Eventually(srv.LobbySize).WithTimeout(2 * time.Second).Should(BeZero())

		client := b.dial(addr, protocol.Version)
		rec := &recorder{}
		client.AddObserver(rec)
		DeferCleanup(client.Close)
		_, err := client.Connect(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(client.Login(ctx, transport.Credentials{Username: "alice", Password: "wrong"})).To(Succeed())
		failed := rec.await(protocol.KindLoginFailed).(protocol.LoginFailed)
		Expect(failed.Reason).To(Equal("invalid username or password"))

		Expect(client.Login(ctx, transport.Credentials{Username: "alice", Password: "secret"})).To(Succeed())
		ok := rec.await(protocol.KindLoginSucceeded).(protocol.LoginSucceeded)
		Expect(ok.Username).To(Equal("alice"))

		err = client.Login(ctx, transport.Credentials{Username: "alice", Password: "secret"})
		Expect(transport.ErrorCode(err)).To(Equal(transport.CodeAlreadyAuthenticated))
	})

	It("reports a taken username", func() {
		player(b, addr, "alice")

		client := b.dial(addr, protocol.Version)
		rec := &recorder{}
		client.AddObserver(rec)
		DeferCleanup(client.Close)
		_, err := client.Connect(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(client.Register(ctx, transport.Credentials{Username: "alice", Password: "other"})).To(Succeed())
		failed := rec.await(protocol.KindRegistrationFailed).(protocol.RegistrationFailed)
		Expect(failed.Reason).To(Equal("username already taken"))
	})

	It("streams a new match to both players", func() {
		_, alice := player(b, addr, "alice")
		_, bob := player(b, addr, "bob")

		for _, rec := range []*recorder{alice, bob} {
			update := rec.await(protocol.KindModelUpdate).(protocol.ModelUpdate)
			Expect(update.Snapshot).NotTo(BeNil())
			Expect(update.Snapshot.Order).To(ConsistOf("alice", "bob"))
			rec.await(protocol.KindTurnEnabled)
		}
		Expect(alice.lobby(protocol.LobbyMatchStarted)()).To(Equal(1))
	})

	It("surfaces a closed connection exactly once on both ends", func() {
		_, alice := player(b, addr, "alice")
		bobClient, bob := player(b, addr, "bob")
		alice.await(protocol.KindTurnEnabled)

		Expect(bobClient.Close()).To(Succeed())
		Expect(bobClient.Close()).To(Succeed())

		Eventually(alice.lobby(protocol.LobbyPlayerLeft)).WithTimeout(2 * time.Second).Should(Equal(1))
		Consistently(bob.disconnections).WithDuration(100 * time.Millisecond).Should(Equal([]error{nil}))

		err := bobClient.PerformAction(ctx, protocol.RollDice{})
		Expect(errors.Is(err, transport.ErrNotConnected)).To(BeTrue())
	})

	It("reports a server going away as a disconnection", func() {
		_, alice := player(b, addr, "alice")

		stop()

		Eventually(alice.disconnections).WithTimeout(2 * time.Second).Should(HaveLen(1))
		err := alice.disconnections()[0]
		Expect(transport.ErrorCode(err)).To(Equal(transport.CodeConnectionFailed))
	})
}

var _ = Describe("Binding contract", func() {
	for _, b := range []binding{grpcBinding, socketBinding} {
		Describe(b.name, func() {
			bindingContract(b)
		})
	}
})

// outcome is everything a scripted match opening shows its players, one
// "kind json" line per notification in arrival order.
type outcome struct {
	alice    []string
	bob      []string
	snapshot string
}

func (r *recorder) count(kind protocol.NotificationKind) func() int {
	return func() int {
		n := 0
		for _, k := range r.kinds() {
			if k == kind {
				n++
			}
		}
		return n
	}
}

func (r *recorder) awaitCount(kind protocol.NotificationKind, n int) {
	GinkgoHelper()
	Eventually(r.count(kind)).WithTimeout(2 * time.Second).Should(BeNumerically(">=", n))
}

func (r *recorder) transcript() []string {
	GinkgoHelper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.got))
	for i, n := range r.got {
		data, err := json.Marshal(n)
		Expect(err).NotTo(HaveOccurred())
		out[i] = string(n.Kind()) + " " + string(data)
	}
	return out
}

func (r *recorder) lastSnapshot() string {
	GinkgoHelper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.got) - 1; i >= 0; i-- {
		if update, ok := r.got[i].(protocol.ModelUpdate); ok {
			data, err := json.Marshal(update.Snapshot)
			Expect(err).NotTo(HaveOccurred())
			return string(data)
		}
	}
	return ""
}

// script plays the opening turn over b: a roll, a council placement and
// its privilege, the end of the turn and a late action.
func script(b binding) outcome {
	GinkgoHelper()
	addr, stop := b.start(newCore())
	DeferCleanup(stop)

	aliceClient, alice := player(b, addr, "alice")
	bobClient, bob := player(b, addr, "bob")
	turn := alice.await(protocol.KindTurnEnabled).(protocol.TurnEnabled)
	bob.await(protocol.KindTurnEnabled)

	current, currentClient, other := alice, aliceClient, bob
	if turn.Player == "bob" {
		current, currentClient, other = bob, bobClient, alice
	}
	ctx := context.Background()

	Expect(currentClient.PerformAction(ctx, protocol.RollDice{})).To(Succeed())
	other.awaitCount(protocol.KindActionPerformed, 1)

	Expect(currentClient.PerformAction(ctx, protocol.Placement{
		Target:   protocol.TargetCouncil,
		Member:   game.MemberNeutral,
		Servants: 1,
	})).To(Succeed())
	asked := current.await(protocol.KindImmediateActionAvailable).(protocol.ImmediateActionAvailable)
	Expect(asked.ActionType).To(Equal(game.ImmediatePrivilege))

	Expect(currentClient.PerformAction(ctx, protocol.ImmediateChoice{
		Immediate: game.ImmediatePrivilege,
		Selection: 2,
	})).To(Succeed())
	other.awaitCount(protocol.KindActionPerformed, 2)

	Expect(currentClient.PerformAction(ctx, protocol.TerminateRound{})).To(Succeed())
	other.awaitCount(protocol.KindTurnEnabled, 2)
	current.awaitCount(protocol.KindTurnEnabled, 2)

	Expect(currentClient.PerformAction(ctx, protocol.RollDice{})).To(Succeed())
	refused := current.await(protocol.KindActionRefused).(protocol.ActionRefused)
	Expect(refused.Code).To(Equal("NOT_YOUR_TURN"))

	return outcome{
		alice:    alice.transcript(),
		bob:      bob.transcript(),
		snapshot: alice.lastSnapshot(),
	}
}

var _ = Describe("transport equivalence", func() {
	It("shows players the same match over every binding", func() {
		overGRPC := script(grpcBinding)
		overSocket := script(socketBinding)

		Expect(overSocket.alice).To(Equal(overGRPC.alice))
		Expect(overSocket.bob).To(Equal(overGRPC.bob))
		Expect(overSocket.snapshot).To(MatchJSON(overGRPC.snapshot))

		var kinds []string
		for _, line := range append(slices.Clone(overGRPC.alice), overGRPC.bob...) {
			kind, _, _ := strings.Cut(line, " ")
			kinds = append(kinds, kind)
		}
		Expect(kinds).To(ContainElements(
			string(protocol.KindImmediateActionAvailable),
			string(protocol.KindTurnDisabled),
		))
		Expect(overGRPC.snapshot).To(ContainSubstring(`"rolled":true`))
	})
})
