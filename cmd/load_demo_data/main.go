// Загрузчик демо-данных: наполняет базу документами с намеренно грязными
// значениями (дубли написаний, юридические суффиксы, префиксы количества),
// чтобы движку разрешения было что разрешать.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"rationalize/database"
)

// supplierVariants наборы написаний одного и того же поставщика
var supplierVariants = [][]string{
	{"ChemCorp SA", "ChemCorp SAS", "chemcorp", "CHEMCORP S.A.S."},
	{"Transports Durand SARL", "Transports Durand", "TRANSPORTS DURAND SAS"},
	{"Papeteries du Sud", "Papeteries du Sud SA", "papeteries du sud"},
	{"Logistique Provence SAS", "Logistique Provence"},
}

// materialVariants грязные описания материалов: одна строка на вариант
var materialVariants = [][]string{
	{
		"Nitrate Ethyle Hexyl",
		"NITRATE ETHYLE HEXYL",
		"nitrate ethyle hexyl ",
	},
	{
		"60 bobines de cellulose - En attente",
		"59 bobines de cellulose",
		"12 bobines de cellulose - Livré",
	},
	{
		"Acide sulfurique 98%",
		"ACIDE SULFURIQUE 98%",
	},
	{
		"25 palettes de carton ondulé",
		"30 palettes de carton ondulé - En cours",
	},
}

// locationVariants варианты написания городов отправления/прибытия
var locationVariants = [][]string{
	{"Sorgues (84)", "SORGUES", "Sorgues"},
	{"Kallo", "Kallo North", "KALLO"},
	{"Avignon", "AVIGNON (84)"},
	{"Marseille", "MARSEILLE", "Marseille (13)"},
	{"Lyon", "LYON"},
}

// clientVariants названия компаний-клиентов
var clientVariants = [][]string{
	{"Eurenco", "EURENCO SA", "eurenco"},
	{"Fibre Excellence", "FIBRE EXCELLENCE SAS"},
	{"Arkema France", "ARKEMA FRANCE"},
}

func main() {
	dbPath := flag.String("db", "rationalize.db", "Путь к базе данных")
	documents := flag.Int("documents", 40, "Количество демо-документов")
	seed := flag.Int64("seed", 42, "Зерно генератора (для воспроизводимости)")
	flag.Parse()

	gofakeit.Seed(*seed)
	rng := rand.New(rand.NewSource(*seed))

	db, err := database.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Ошибка открытия базы данных: %v", err)
	}
	defer db.Close()

	// Каждый вариант написания поставщика попадает в таблицу отдельной
	// строкой: именно такие дубли и должен склеить движок.
	supplierIDs := make([]int64, 0)
	for _, variants := range supplierVariants {
		for _, name := range variants {
			id, err := db.InsertSupplier(name)
			if err != nil {
				log.Fatalf("Ошибка создания поставщика %q: %v", name, err)
			}
			supplierIDs = append(supplierIDs, id)
		}
	}

	lines := 0
	for i := 0; i < *documents; i++ {
		client := pick(rng, clientVariants)
		docID, err := db.InsertDocument(database.Document{
			Reference:  fmt.Sprintf("FAC-%d-%04d", 2025, i+1),
			DocType:    pickOne(rng, []string{"invoice", "delivery_note"}),
			ClientName: client,
			SupplierID: supplierIDs[rng.Intn(len(supplierIDs))],
			IssuedOn: gofakeit.DateRange(
				time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)).Format("2006-01-02"),
		})
		if err != nil {
			log.Fatalf("Ошибка создания документа: %v", err)
		}

		for j := 0; j < 1+rng.Intn(4); j++ {
			material := pick(rng, materialVariants)
			_, err := db.InsertInvoiceLine(database.InvoiceLine{
				DocumentID:        docID,
				Description:       material,
				MaterialType:      material,
				Quantity:          float64(1 + rng.Intn(60)),
				Unit:              pickOne(rng, []string{"t", "kg", "palette", "bobine"}),
				DepartureLocation: pick(rng, locationVariants),
				ArrivalLocation:   pick(rng, locationVariants),
				Amount:            gofakeit.Price(100, 25000),
			})
			if err != nil {
				log.Fatalf("Ошибка создания строки счета: %v", err)
			}
			lines++
		}
	}

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Printf("✓ Демо-данные загружены в %s\n", *dbPath)
	fmt.Printf("  Поставщиков: %d\n", len(supplierIDs))
	fmt.Printf("  Документов:  %d\n", *documents)
	fmt.Printf("  Строк:       %d\n", lines)
	fmt.Println("  Запустите auto_resolve или POST /api/entities/auto-resolve")
	fmt.Println("═══════════════════════════════════════════════════════")
}

// pick выбирает случайный вариант из случайной группы
func pick(rng *rand.Rand, groups [][]string) string {
	group := groups[rng.Intn(len(groups))]
	return group[rng.Intn(len(group))]
}

func pickOne(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}
