package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/topsort"
	"github.com/meikuraledutech/topsort/postgres"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	// Each graph lives in its own table, registered under a UUID.
	var mu sync.RWMutex
	graphs := make(map[string]topsort.Store)
	lookup := func(id string) (topsort.Store, bool) {
		mu.RLock()
		defer mu.RUnlock()
		s, ok := graphs[id]
		return s, ok
	}

	app := fiber.New()
	app.Use(logger.New())

	// ── Graphs ────────────────────────────────────────────────────────
	app.Post("/graphs", func(c fiber.Ctx) error {
		id := uuid.NewString()
		store := postgres.New(pool, "topsort_"+strings.ReplaceAll(id, "-", ""), "source", "sink")
		if err := store.CreateSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		mu.Lock()
		graphs[id] = store
		mu.Unlock()
		return c.Status(201).JSON(fiber.Map{"id": id})
	})

	app.Get("/graphs/:id", func(c fiber.Ctx) error {
		store, ok := lookup(c.Params("id"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
		}
		n, err := store.Len(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"id": c.Params("id"), "len": n})
	})

	app.Delete("/graphs/:id", func(c fiber.Ctx) error {
		store, ok := lookup(c.Params("id"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
		}
		if err := store.DropSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		mu.Lock()
		delete(graphs, c.Params("id"))
		mu.Unlock()
		return c.SendStatus(204)
	})

	// ── Edges ─────────────────────────────────────────────────────────
	app.Post("/graphs/:id/edges", func(c fiber.Ctx) error {
		store, ok := lookup(c.Params("id"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
		}
		var e topsort.Edge
		if err := c.Bind().JSON(&e); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := store.Add(c.Context(), e.Source, e.Sink); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(e)
	})

	app.Delete("/graphs/:id/edges", func(c fiber.Ctx) error {
		store, ok := lookup(c.Params("id"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
		}
		source, sink := c.Query("source"), c.Query("sink")
		if source == "" || sink == "" {
			return c.Status(400).JSON(fiber.Map{"error": "source and sink are required"})
		}
		if err := store.Remove(c.Context(), source, sink); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.SendStatus(204)
	})

	app.Get("/graphs/:id/edges", func(c fiber.Ctx) error {
		store, ok := lookup(c.Params("id"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
		}
		edges, err := store.Edges(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(edges)
	})

	app.Get("/graphs/:id/nodes", func(c fiber.Ctx) error {
		store, ok := lookup(c.Params("id"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
		}
		nodes, err := store.Nodes(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		if nodes == nil {
			nodes = []string{}
		}
		return c.JSON(nodes)
	})

	app.Get("/graphs/:id/contains", func(c fiber.Ctx) error {
		store, ok := lookup(c.Params("id"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
		}
		source, sink := c.Query("source"), c.Query("sink")
		if source == "" || sink == "" {
			return c.Status(400).JSON(fiber.Map{"error": "source and sink are required"})
		}
		found, err := store.Contains(c.Context(), source, sink)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"contains": found})
	})

	// ── Sort ──────────────────────────────────────────────────────────
	app.Get("/graphs/:id/sort", func(c fiber.Ctx) error {
		store, ok := lookup(c.Params("id"))
		if !ok {
			return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
		}
		starts := splitList(c.Query("start"))
		endpoints := splitList(c.Query("endpoint"))

		var (
			g   topsort.Generations
			err error
		)
		if c.Query("reverse") == "true" {
			g, err = store.SortReverse(c.Context(), starts, endpoints)
		} else {
			g, err = store.SortForward(c.Context(), starts, endpoints)
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}

		gens, err := topsort.Collect(g)
		if gens == nil {
			gens = [][]string{}
		}
		var cerr *topsort.CycleError
		if errors.As(err, &cerr) {
			return c.Status(422).JSON(fiber.Map{
				"error":       "cycle detected",
				"generations": gens,
				"cycle":       cerr.Cycle,
				"edges":       cerr.Edges,
			})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"generations": gens})
	})

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":3000"
	}
	log.Fatal(app.Listen(addr))
}

// splitList parses a comma separated query value; empty yields nil.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
