package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aktagon/copostr/migrations"
)

const usage = "Usage: migrate <up|import|release> <index-directory> [file.csv|image-id]"

const credentialsTemplate = "COPOSTR_EMAIL=''\nCOPOSTR_PASSWORD=''\nCOPOSTR_PROJECT=''\n"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	if len(args) < 2 {
		return errors.New(usage)
	}

	command := args[0]
	indexDir := args[1]

	switch command {
	case "up":
		db, err := openIndex(indexDir)
		if err != nil {
			return err
		}
		defer db.Close()
		version, err := migrations.Version(db.DB)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Index at schema version %d\n", version)
		return nil
	case "import":
		if len(args) < 3 {
			return errors.New(usage)
		}
		return importImages(indexDir, args[2], out)
	case "release":
		if len(args) < 3 {
			return errors.New(usage)
		}
		id, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil || id < 0 {
			return fmt.Errorf("invalid image id %q", args[2])
		}
		return releaseImage(indexDir, id, bufio.NewReader(in), out)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// openIndex opens <dir>/images.db, creating and migrating it when needed
func openIndex(indexDir string) (*sqlx.DB, error) {
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	db, err := sqlx.Open("sqlite3", filepath.Join(indexDir, "images.db"))
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	if err := migrations.Up(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type importRow struct {
	ID      int64  `db:"id"`
	Title   string `db:"title"`
	Source  string `db:"source"`
	Image   string `db:"image"`
	License string `db:"license"`
	Status  int    `db:"status"`
}

func importImages(indexDir, csvPath string, out io.Writer) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", csvPath, err)
	}
	defer f.Close()

	rows, skipped, err := readImportRows(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", csvPath, err)
	}

	db, err := openIndex(indexDir)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	inserted := 0
	for _, row := range rows {
		res, err := tx.NamedExec(`INSERT OR IGNORE INTO images (id, title, source, image, license, status)
			VALUES (:id, :title, :source, :image, :license, :status)`, row)
		if err != nil {
			return fmt.Errorf("inserting image %d: %w", row.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := writeCredentialsTemplate(indexDir); err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %d images (%d already indexed, %d skipped)\n",
		inserted, len(rows)-inserted, skipped)
	return nil
}

// readImportRows parses id,title,source,image,license records. Rows without
// an image URL, with a bad id, or repeating an earlier id are skipped.
func readImportRows(r io.Reader) ([]importRow, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5
	reader.TrimLeadingSpace = true

	converter := md.NewConverter("", true, &md.Options{EscapeMode: "disabled"})

	var rows []importRow
	seen := make(map[int64]bool)
	skipped := 0
	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		id, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			if first && strings.EqualFold(strings.TrimSpace(record[0]), "id") {
				first = false
				continue
			}
			log.Printf("Skipping row with invalid id %q", record[0])
			skipped++
			continue
		}
		first = false

		image := strings.TrimSpace(record[3])
		if image == "" || seen[id] {
			skipped++
			continue
		}
		seen[id] = true

		title, err := converter.ConvertString(record[1])
		if err != nil {
			title = record[1]
		}

		rows = append(rows, importRow{
			ID:      id,
			Title:   strings.TrimSpace(title),
			Source:  strings.TrimSpace(record[2]),
			Image:   image,
			License: strings.TrimSpace(record[4]),
			Status:  migrations.StatusUnposted,
		})
	}
	return rows, skipped, nil
}

func writeCredentialsTemplate(indexDir string) error {
	path := filepath.Join(indexDir, "credentials")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0o600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}
	return nil
}

func releaseImage(indexDir string, id int64, reader *bufio.Reader, out io.Writer) error {
	db, err := openIndex(indexDir)
	if err != nil {
		return err
	}
	defer db.Close()

	var image struct {
		Title  string `db:"title"`
		Status int    `db:"status"`
	}
	if err := db.Get(&image, `SELECT COALESCE(title, '') AS title, status FROM images WHERE id = ?`, id); err != nil {
		return fmt.Errorf("looking up image %d: %w", id, err)
	}
	if image.Status != migrations.StatusImageTooLarge {
		return fmt.Errorf("image %d is not marked as too large", id)
	}

	if !confirmRelease(reader, out, id, image.Title) {
		fmt.Fprintf(out, "  SKIP: %d\n", id)
		return nil
	}

	if _, err := db.Exec(`UPDATE images SET status = ? WHERE id = ?`, migrations.StatusUnposted, id); err != nil {
		return fmt.Errorf("releasing image %d: %w", id, err)
	}
	fmt.Fprintf(out, "  RELEASED: %d\n", id)
	return nil
}

func confirmRelease(reader *bufio.Reader, out io.Writer, id int64, title string) bool {
	for {
		fmt.Fprintf(out, "  RELEASE %d (%s)? [y/N]: ", id, title)
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return false
		}
		response := strings.ToLower(strings.TrimSpace(input))
		switch response {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		default:
			fmt.Fprintln(out, "  Please enter y or n.")
		}
	}
}
