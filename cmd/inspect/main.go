// Command inspect prints the chat history and the user directory stored in BadgerDB.
package main

import (
	"chat-relay/domain"
	"chat-relay/infrastructure/storage"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	room := flag.String("room", "", "Room whose history is printed")
	pair := flag.String("pair", "", "Two usernames, comma separated, whose conversation is printed")
	limit := flag.Int("limit", 50, "Maximum number of messages")
	users := flag.Bool("users", false, "List the user directory")
	addUser := flag.String("add-user", "", "username[,first name,last name] to add to the directory")
	flag.Parse()

	readOnly := *addUser == ""
	db, err := openDB(*dbPath, readOnly)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	userRepository := storage.NewUserRepository(db)
	switch {
	case *addUser != "":
		err = saveUser(userRepository, *addUser)
	case *users:
		err = printUsers(userRepository)
	case *room != "":
		err = printRoom(db, domain.RoomID(*room), *limit)
	case *pair != "":
		err = printPair(db, *pair, *limit)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func openDB(path string, readOnly bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithBypassLockGuard(readOnly)
	if readOnly {
		opts = opts.WithReadOnly(true)
	}
	return badger.Open(opts)
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func messageRepository(db *badger.DB) (*storage.MessageRepository, error) {
	return storage.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelWarn))
}

func printRoom(db *badger.DB, room domain.RoomID, limit int) error {
	if !domain.IsValidRoom(room) {
		return fmt.Errorf("unknown room %q, expected one of %v", room, domain.Rooms)
	}
	repository, err := messageRepository(db)
	if err != nil {
		return err
	}
	messages, err := repository.RecentGroup(room, limit)
	if err != nil {
		return err
	}

	color.Cyan.Printf("# %s (%d messages)\n", room, len(messages))
	table := newTable("Seq", "Sent", "From", "Message")
	for _, m := range lo.Reverse(messages) {
		table.Append([]string{fmt.Sprint(m.Seq), m.At.Format(time.DateTime), m.From, m.Content})
	}
	table.Render()
	return nil
}

func printPair(db *badger.DB, pair string, limit int) error {
	usernames := lo.Compact(lo.Map(strings.Split(pair, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
	if len(usernames) != 2 {
		return fmt.Errorf("pair must hold two usernames, got %q", pair)
	}
	repository, err := messageRepository(db)
	if err != nil {
		return err
	}
	messages, err := repository.RecentDirect(usernames[0], usernames[1], limit)
	if err != nil {
		return err
	}

	color.Cyan.Printf("# %s <-> %s (%d messages)\n", usernames[0], usernames[1], len(messages))
	table := newTable("Seq", "Sent", "From", "To", "Message")
	for _, m := range lo.Reverse(messages) {
		table.Append([]string{fmt.Sprint(m.Seq), m.At.Format(time.DateTime), m.From, m.To, m.Content})
	}
	table.Render()
	return nil
}

func printUsers(repository *storage.UserRepository) error {
	directory, err := repository.List()
	if err != nil {
		return err
	}
	color.Cyan.Printf("# %d users\n", len(directory))
	table := newTable("Username", "First name", "Last name", "Created")
	for _, u := range directory {
		table.Append([]string{u.Username, u.FirstName, u.LastName, u.CreatedAt.Format(time.DateTime)})
	}
	table.Render()
	return nil
}

func saveUser(repository *storage.UserRepository, raw string) error {
	fields := lo.Map(strings.Split(raw, ","), func(s string, _ int) string { return strings.TrimSpace(s) })
	user := domain.User{Username: fields[0], CreatedAt: time.Now().UTC()}
	if len(fields) > 1 {
		user.FirstName = fields[1]
	}
	if len(fields) > 2 {
		user.LastName = fields[2]
	}
	if err := repository.Save(user); err != nil {
		return err
	}
	color.Green.Printf("User %s saved\n", user.Username)
	return nil
}
