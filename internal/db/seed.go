package db

import (
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campusknot/internal/logger"
)

// SeedOptions controls SeedTestData.
type SeedOptions struct {
	Users         int
	SwipesPerUser int
	Password      string
	EmailDomain   string
	Reset         bool
}

var (
	seedFirstNames = []string{"Aarav", "Diya", "Kabir", "Ananya", "Vihaan", "Isha", "Arjun", "Meera", "Rohan", "Saanvi", "Dev", "Tara"}
	seedBranches   = []string{"CSE", "ECE", "EEE", "Mechanical", "Civil", "Chemical", "IT", "Metallurgy"}
	seedYears      = []string{"1st", "2nd", "3rd", "4th"}
	seedInterests  = []string{"Music", "Art", "Chess", "Football", "Coding", "Dance", "Photography", "Travel", "Movies", "Reading", "Gaming", "Cooking"}
	seedGreenFlags = []string{"Good listener", "Punctual", "Kind to waiters", "Texts back"}
	seedRedFlags   = []string{"Always late", "Pineapple on pizza", "Leaves on read"}
)

// SeedTestData populates the database with demo campus users and swipes.
//
// Behavior:
//  1. With Reset, clears messages, matches, swipes, reports, and users.
//  2. Creates opts.Users users alternating male/female with hashed passwords.
//  3. Each user swipes on ~opts.SwipesPerUser others (~70% likes).
//  4. Reciprocal likes get a match row in canonical order.
//
// Compatible with MySQL, Postgres, and SQLite.
func SeedTestData(db *gorm.DB, opts SeedOptions) error {
	if opts.Users <= 0 {
		opts.Users = 20
	}
	if opts.SwipesPerUser <= 0 {
		opts.SwipesPerUser = 8
	}
	if opts.Password == "" {
		opts.Password = "password"
	}
	if opts.EmailDomain == "" {
		opts.EmailDomain = "@nitk.edu.in"
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	log := logger.With("component", "seed")

	if opts.Reset {
		if err := resetTables(db); err != nil {
			return err
		}
		log.Info("cleared existing data")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	ids := make([]uint64, 0, opts.Users)
	genders := make(map[uint64]string, opts.Users)
	suffix := time.Now().Unix()
	for i := 1; i <= opts.Users; i++ {
		gender := "male"
		if i%2 == 0 {
			gender = "female"
		}
		user := User{
			Name:         fmt.Sprintf("%s %d", seedFirstNames[r.Intn(len(seedFirstNames))], i),
			Email:        fmt.Sprintf("demo%d.%d%s", i, suffix, opts.EmailDomain),
			PasswordHash: string(hash),
			Age:          18 + r.Intn(8),
			Gender:       gender,
			Branch:       seedBranches[r.Intn(len(seedBranches))],
			Year:         seedYears[r.Intn(len(seedYears))],
			Bio:          "Hey there! Seeded for local testing.",
			ShowMe:       ShowAll,
			Interests:    pick(r, seedInterests, 3),
			GreenFlags:   pick(r, seedGreenFlags, 2),
			RedFlags:     pick(r, seedRedFlags, 1),
			Verified:     true,
			Active:       true,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
		ids = append(ids, user.ID)
		genders[user.ID] = gender
	}
	log.Info("seeded users", "count", len(ids))

	swipes, matches := 0, 0
	for _, actor := range ids {
		for j := 0; j < opts.SwipesPerUser; j++ {
			target := ids[r.Intn(len(ids))]
			if target == actor || genders[target] == genders[actor] {
				continue
			}

			decision := DecisionPass
			if r.Intn(100) < 70 {
				decision = DecisionLike
			}
			res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&Swipe{
				ActorID:   actor,
				TargetID:  target,
				Decision:  decision,
				SuperLike: decision == DecisionLike && r.Intn(10) == 0,
			})
			if res.Error != nil {
				return fmt.Errorf("failed to seed swipe: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}
			swipes++

			if decision != DecisionLike {
				continue
			}
			var reciprocal int64
			if err := db.Model(&Swipe{}).
				Where("actor_id = ? AND target_id = ? AND decision = ?", target, actor, DecisionLike).
				Count(&reciprocal).Error; err != nil {
				return err
			}
			if reciprocal == 0 {
				continue
			}
			lo, hi := CanonicalPair(actor, target)
			res = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&Match{User1ID: lo, User2ID: hi})
			if res.Error != nil {
				return fmt.Errorf("failed to seed match: %w", res.Error)
			}
			matches += int(res.RowsAffected)
		}
	}
	log.Info("seeded swipes", "swipes", swipes, "matches", matches)

	return nil
}

func resetTables(db *gorm.DB) error {
	for _, table := range []string{"messages", "matches", "swipes", "reports", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		for _, table := range []string{"messages", "matches", "swipes", "reports", "users"} {
			db.Exec("ALTER TABLE " + table + " AUTO_INCREMENT = 1")
		}
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence")
	}
	return nil
}

func pick(r *rand.Rand, from []string, n int) StringList {
	perm := r.Perm(len(from))
	if n > len(from) {
		n = len(from)
	}
	out := make(StringList, 0, n)
	for _, i := range perm[:n] {
		out = append(out, from[i])
	}
	return out
}
