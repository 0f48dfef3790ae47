package service

import (
	"log/slog"
	"time"

	"github.com/kirinyoku/busgo/internal/gateway"
	redisx "github.com/kirinyoku/busgo/internal/redis"
	redisrepo "github.com/kirinyoku/busgo/internal/repository/redis"
	"github.com/kirinyoku/busgo/internal/service/account"
	"github.com/kirinyoku/busgo/internal/service/admin"
	"github.com/kirinyoku/busgo/internal/service/bookingflow"
	"github.com/kirinyoku/busgo/internal/service/bookinglist"
	"github.com/redis/go-redis/v9"
)

type Services struct {
	Account     *account.Service
	Admin       *admin.Service
	BookingFlow *bookingflow.Service
	BookingList *bookinglist.Service
}

type Config struct {
	BookingFlow bookingflow.Config
}

// Stores groups the redis-backed state the services keep between requests.
type Stores struct {
	Flows    *redisrepo.Store[bookingflow.State]
	Lists    *redisrepo.Store[bookinglist.List]
	Sessions *redisrepo.Store[account.Session]
	Submit   *redisrepo.Locker
	Limiter  *redisrepo.SlidingWindowLimiter
	Events   *redisrepo.BusEvents
	Idem     *redisrepo.IdempotencyStore
}

type StoreConfig struct {
	FlowTTL     time.Duration
	ListTTL     time.Duration
	SessionTTL  time.Duration
	LoginLimit  int
	LoginWindow time.Duration
	IdemTTL     time.Duration
}

func NewStores(rdb *redis.Client, cfg StoreConfig) Stores {
	if cfg.LoginLimit <= 0 {
		cfg.LoginLimit = 10
	}

	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = time.Minute
	}

	if cfg.IdemTTL <= 0 {
		cfg.IdemTTL = 24 * time.Hour
	}

	if cfg.ListTTL <= 0 {
		cfg.ListTTL = cfg.FlowTTL
	}

	return Stores{
		Flows:    redisrepo.NewStore[bookingflow.State](rdb, redisx.KeyFlow, cfg.FlowTTL),
		Lists:    redisrepo.NewStore[bookinglist.List](rdb, redisx.KeyBookingList, cfg.ListTTL),
		Sessions: redisrepo.NewStore[account.Session](rdb, redisx.KeySession, cfg.SessionTTL),
		Submit:   redisrepo.NewLocker(rdb, redisx.KeyFlowSubmit),
		Limiter:  redisrepo.NewSlidingWindowLimiter(rdb, "login", cfg.LoginLimit, cfg.LoginWindow),
		Events:   redisrepo.NewBusEvents(rdb),
		Idem:     redisrepo.NewIdempotencyStore(rdb, cfg.IdemTTL),
	}
}

func NewServices(gw *gateway.Client, st Stores, logger *slog.Logger, cfg Config) *Services {
	lists := bookinglist.New(gw, st.Lists, st.Events, logger)
	return &Services{
		Account:     account.New(gw, st.Sessions, st.Limiter, logger),
		Admin:       admin.New(gw, st.Events, logger),
		BookingFlow: bookingflow.New(gw, st.Flows, st.Submit, st.Events, lists, logger, cfg.BookingFlow),
		BookingList: lists,
	}
}
