package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"aerolite/backend/internal/account"
	"aerolite/backend/internal/app"
	"aerolite/backend/internal/catalog"
	"aerolite/backend/internal/config"
	"aerolite/backend/internal/order"
	"aerolite/backend/internal/storage"
	"aerolite/backend/pkg/messaging"

	"github.com/rabbitmq/amqp091-go"
)

const usage = "expected one of: add-user, seed, list-orders, flush-outbox, tail-events"

func main() {
	addUserCmd := flag.NewFlagSet("add-user", flag.ExitOnError)
	email := addUserCmd.String("email", "", "Email for the new user")
	password := addUserCmd.String("password", "", "Password for the new user")
	firstName := addUserCmd.String("first", "", "First name")
	lastName := addUserCmd.String("last", "", "Last name")

	listOrdersCmd := flag.NewFlagSet("list-orders", flag.ExitOnError)
	userID := listOrdersCmd.Int64("user", 0, "Owner of the orders")

	tailCmd := flag.NewFlagSet("tail-events", flag.ExitOnError)
	queue := tailCmd.String("queue", "", "Durable queue to read from; empty uses a throwaway queue")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	app.ConfigureJSON()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "add-user":
		addUserCmd.Parse(os.Args[2:])
		if *email == "" || *password == "" || *firstName == "" || *lastName == "" {
			fmt.Println("email, password, first and last are required")
			addUserCmd.PrintDefaults()
			os.Exit(1)
		}
		addUser(ctx, cfg, logger, *email, *password, *firstName, *lastName)
	case "seed":
		seed(ctx, cfg, logger)
	case "list-orders":
		listOrdersCmd.Parse(os.Args[2:])
		if *userID <= 0 {
			fmt.Println("user is required")
			listOrdersCmd.PrintDefaults()
			os.Exit(1)
		}
		listOrders(ctx, cfg, logger, *userID)
	case "flush-outbox":
		flushOutbox(ctx, cfg, logger)
	case "tail-events":
		tailCmd.Parse(os.Args[2:])
		tailEvents(ctx, cfg, logger, *queue)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) *storage.Store {
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	store, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	return store
}

func addUser(ctx context.Context, cfg config.Config, logger *slog.Logger, email, password, firstName, lastName string) {
	store := openStore(ctx, cfg, logger)
	defer store.Close()

	svc := account.NewService(account.NewPostgresRepository(store.Pool()), cfg.BcryptCost, logger)
	u, err := svc.Register(ctx, email, password, firstName, lastName)
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("User '%s' created with id %d.\n", u.Email, u.ID)
}

func seed(ctx context.Context, cfg config.Config, logger *slog.Logger) {
	store := openStore(ctx, cfg, logger)
	defer store.Close()

	n, err := catalog.NewService(catalog.NewPostgresRepository(store.Pool()), logger).Seed(ctx)
	if err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}
	fmt.Printf("Inserted %d products.\n", n)
}

func listOrders(ctx context.Context, cfg config.Config, logger *slog.Logger, userID int64) {
	store := openStore(ctx, cfg, logger)
	defer store.Close()

	u, err := account.NewService(account.NewPostgresRepository(store.Pool()), cfg.BcryptCost, logger).Get(ctx, userID)
	if err != nil {
		log.Fatalf("Failed to load user %d: %v", userID, err)
	}
	fmt.Printf("Orders for %s %s <%s>\n", u.FirstName, u.LastName, u.Email)

	orders, err := order.NewService(order.NewPostgresRepository(store.Pool()), nil, logger).List(ctx, userID)
	if err != nil {
		log.Fatalf("Failed to list orders: %v", err)
	}
	for _, o := range orders {
		fmt.Printf("%d\t%s\t%s\t%s\t%s\n", o.ID, o.CreatedAt.Format("2006-01-02 15:04"), o.TotalAmount.StringFixed(2), o.Status, o.PaymentStatus)
	}
}

func flushOutbox(ctx context.Context, cfg config.Config, logger *slog.Logger) {
	if cfg.RabbitURL == "" {
		log.Fatal("RABBIT_URL is required")
	}
	store := openStore(ctx, cfg, logger)
	defer store.Close()

	publisher, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.OrdersExchange)
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer publisher.Close()

	dispatcher := messaging.NewOutboxDispatcher(store.Pool(), publisher, order.OutboxTable, cfg.OutboxInterval, cfg.OutboxBatchSize, logger)
	total := 0
	for {
		sent, err := dispatcher.Dispatch(ctx)
		if err != nil {
			log.Fatalf("Failed to flush outbox: %v", err)
		}
		total += sent
		if sent == 0 {
			break
		}
	}
	fmt.Printf("Published %d events.\n", total)
}

func tailEvents(ctx context.Context, cfg config.Config, logger *slog.Logger, queue string) {
	if cfg.RabbitURL == "" {
		log.Fatal("RABBIT_URL is required")
	}
	consumer, err := messaging.NewRabbitConsumer(cfg.RabbitURL, cfg.OrdersExchange, queue, queue == "", logger)
	if err != nil {
		log.Fatalf("Failed to connect to broker: %v", err)
	}
	defer consumer.Close()

	fmt.Fprintf(os.Stderr, "Reading %s from queue %s.\n", cfg.OrdersExchange, consumer.Queue())
	err = consumer.Start(ctx, func(_ context.Context, msg amqp091.Delivery) error {
		fmt.Printf("%s\t%s\t%s\t%s\n", msg.Timestamp.Format("15:04:05"), msg.MessageId, msg.Type, msg.Body)
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to consume: %v", err)
	}
}
