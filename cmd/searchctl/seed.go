package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"vdestor_backend/internal/search/variants"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type seedOptions struct {
	Products   int
	Cities     int
	Warehouses int
	Seed       int64
}

func (o seedOptions) validate() error {
	if o.Products < 1 || o.Products > 1_000_000 {
		return errors.New("products must be between 1 and 1000000")
	}
	if o.Cities < 1 || o.Warehouses < 1 {
		return errors.New("cities and warehouses must be positive")
	}
	return nil
}

// catalog holds rows in COPY order, with explicit ids.
type catalog struct {
	brands     [][]any
	series     [][]any
	products   [][]any
	cities     [][]any
	warehouses [][]any
	mapping    [][]any
	stock      [][]any
	prices     [][]any
}

var (
	seriesNames = []string{"Atlas", "Etika", "Valena", "Basic", "Prime", "Glossa", "Unica", "Sedna"}
	specs       = []string{"16А", "10А", "2x1.5", "3x2.5", "белый", "черный", "IP44", "IP20", "E27", "9Вт"}
)

func generateCatalog(opts seedOptions) catalog {
	faker := gofakeit.New(opts.Seed)
	title := cases.Title(language.Und)
	dict := variants.DefaultDictionary()

	var cat catalog

	brandNames := dict.Brands()
	for i, name := range brandNames {
		cat.brands = append(cat.brands, []any{int64(i + 1), title.String(name)})
	}

	seriesID := int64(0)
	seriesByBrand := make([][]int64, len(brandNames))
	for b := range brandNames {
		for _, name := range pickDistinct(faker, seriesNames, 2) {
			seriesID++
			cat.series = append(cat.series, []any{seriesID, int64(b + 1), name})
			seriesByBrand[b] = append(seriesByBrand[b], seriesID)
		}
	}

	categories := dict.Categories()
	for i := 0; i < opts.Products; i++ {
		id := int64(i + 1)
		b := faker.Number(0, len(brandNames)-1)
		series := seriesByBrand[b][faker.Number(0, len(seriesByBrand[b])-1)]
		name := fmt.Sprintf("%s %s %s %s",
			title.String(faker.RandomString(categories)),
			title.String(brandNames[b]),
			cat.series[series-1][2],
			faker.RandomString(specs),
		)
		cat.products = append(cat.products, []any{
			id,
			strings.ToUpper(faker.Lexify("???")) + faker.Numerify("#####"),
			strings.ToUpper(faker.Lexify("??")) + "-" + faker.Numerify("####"),
			name,
			faker.Sentence(8),
			int64(b + 1),
			series,
		})
	}

	for i := 0; i < opts.Cities; i++ {
		cat.cities = append(cat.cities, []any{int64(i + 1), faker.City()})
	}
	for i := 0; i < opts.Warehouses; i++ {
		cat.warehouses = append(cat.warehouses, []any{int64(i + 1), fmt.Sprintf("Склад %d", i+1)})
	}

	// Every city gets one or two warehouses; with more warehouses than
	// cities some stay unmapped, which exercises the warehouse filter.
	for c := 0; c < opts.Cities; c++ {
		first := int64(c%opts.Warehouses + 1)
		cat.mapping = append(cat.mapping, []any{int64(c + 1), first})
		if opts.Warehouses > 1 && faker.Bool() {
			second := int64((c+1)%opts.Warehouses + 1)
			cat.mapping = append(cat.mapping, []any{int64(c + 1), second})
		}
	}

	priceID := int64(0)
	for i := 0; i < opts.Products; i++ {
		productID := int64(i + 1)
		for w := 0; w < opts.Warehouses; w++ {
			if faker.Number(1, 10) <= 7 {
				cat.stock = append(cat.stock, []any{productID, int64(w + 1), float64(faker.Number(0, 500))})
			}
		}

		// About one product in ten has no price at all.
		if faker.Number(1, 10) == 1 {
			continue
		}
		base := roundCents(faker.Price(50, 5000))
		priceID++
		cat.prices = append(cat.prices, []any{priceID, productID, base, true, nil, nil})
		if faker.Number(1, 4) == 1 {
			priceID++
			city := int64(faker.Number(1, opts.Cities))
			cat.prices = append(cat.prices, []any{priceID, productID, roundCents(base * 0.95), false, city, nil})
		}
	}

	return cat
}

func pickDistinct(faker *gofakeit.Faker, values []string, n int) []string {
	picked := make([]string, 0, n)
	for len(picked) < n && len(picked) < len(values) {
		v := faker.RandomString(values)
		dup := false
		for _, p := range picked {
			if p == v {
				dup = true
				break
			}
		}
		if !dup {
			picked = append(picked, v)
		}
	}
	return picked
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

type copyTable struct {
	name    string
	columns []string
	rows    func(catalog) [][]any
	serial  string
}

var copyTables = []copyTable{
	{"brands", []string{"brand_id", "name"}, func(c catalog) [][]any { return c.brands }, "brand_id"},
	{"series", []string{"series_id", "brand_id", "name"}, func(c catalog) [][]any { return c.series }, "series_id"},
	{"products", []string{"product_id", "external_id", "sku", "name", "description", "brand_id", "series_id"}, func(c catalog) [][]any { return c.products }, "product_id"},
	{"cities", []string{"city_id", "name"}, func(c catalog) [][]any { return c.cities }, "city_id"},
	{"warehouses", []string{"warehouse_id", "name"}, func(c catalog) [][]any { return c.warehouses }, "warehouse_id"},
	{"city_warehouse_mapping", []string{"city_id", "warehouse_id"}, func(c catalog) [][]any { return c.mapping }, ""},
	{"stock_balances", []string{"product_id", "warehouse_id", "quantity"}, func(c catalog) [][]any { return c.stock }, ""},
	{"prices", []string{"price_id", "product_id", "price", "is_base", "city_id", "warehouse_id"}, func(c catalog) [][]any { return c.prices }, "price_id"},
}

func writeCatalog(ctx context.Context, pool *pgxpool.Pool, cat catalog, reset bool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if reset {
		if _, err := tx.Exec(ctx, `TRUNCATE prices, stock_balances, city_warehouse_mapping, warehouses, cities, products, series, brands RESTART IDENTITY CASCADE`); err != nil {
			return fmt.Errorf("reset catalog: %w", err)
		}
	} else {
		var existing int64
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&existing); err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("products table already has %d rows; use --reset", existing)
		}
	}

	for _, table := range copyTables {
		rows := table.rows(cat)
		if len(rows) == 0 {
			continue
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{table.name}, table.columns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy %s: %w", table.name, err)
		}
		if table.serial != "" {
			sql := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%s', '%s'), (SELECT MAX(%s) FROM %s))`,
				table.name, table.serial, table.serial, table.name)
			if _, err := tx.Exec(ctx, sql); err != nil {
				return fmt.Errorf("advance %s sequence: %w", table.name, err)
			}
		}
	}

	return tx.Commit(ctx)
}
