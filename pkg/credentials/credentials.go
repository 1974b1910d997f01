// Package credentials loads the per-service usernames, passwords and database
// names shared by every pod. The values live in a flat KEY=value file under the
// data root that is created with defaults once and then left to the user.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/subosito/gotenv"
)

// FileName is the credentials file name inside the data root
const FileName = "credentials.env"

// Recognised keys
const (
	PostgresUser     = "POSTGRES_USER"
	PostgresPassword = "POSTGRES_PASSWORD"
	PostgresDB       = "POSTGRES_DB"
	MongoDB          = "MONGO_DB"
	MongoReplSet     = "MONGO_REPLSET"
	RedisPassword    = "REDIS_PASSWORD"
	RabbitMQUser     = "RABBITMQ_USER"
	RabbitMQPassword = "RABBITMQ_PASSWORD"
	SeqAdminPassword = "SEQ_ADMIN_PASSWORD"
)

// Set is the credential set loaded once per invocation
type Set struct {
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MongoDB          string
	MongoReplSet     string
	RedisPassword    string
	RabbitMQUser     string
	RabbitMQPassword string
	SeqAdminPassword string
}

// Defaults returns the documented default credential set
func Defaults() Set {
	return Set{
		PostgresUser:     "dev",
		PostgresPassword: "dev",
		PostgresDB:       "dev",
		MongoDB:          "dev",
		MongoReplSet:     "rs0",
		RedisPassword:    "dev",
		RabbitMQUser:     "dev",
		RabbitMQPassword: "dev",
		SeqAdminPassword: "devpassword",
	}
}

var fileTemplate = template.Must(template.New("credentials").Parse(`# devpods credentials
# Created once with defaults. devpods never rewrites this file; edit freely.
# Changing a value after a pod's first "up" needs "devpods reset <pod>" to take effect.

# PostgreSQL (pod: postgres)
POSTGRES_USER={{.PostgresUser}}
POSTGRES_PASSWORD={{.PostgresPassword}}
POSTGRES_DB={{.PostgresDB}}

# MongoDB (pod: mongo)
MONGO_DB={{.MongoDB}}
MONGO_REPLSET={{.MongoReplSet}}

# Redis Stack (pod: redis)
REDIS_PASSWORD={{.RedisPassword}}

# RabbitMQ (pod: rabbitmq)
RABBITMQ_USER={{.RabbitMQUser}}
RABBITMQ_PASSWORD={{.RabbitMQPassword}}

# Seq (pod: seq)
SEQ_ADMIN_PASSWORD={{.SeqAdminPassword}}
`))

// Path returns the credentials file path for a data root
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// EnsureFile writes the default credentials file if it does not exist yet.
// It reports whether a new file was created.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("credentials dosyası kontrol edilemedi: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("credentials dizini oluşturulamadı: %w", err)
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, Defaults()); err != nil {
		return false, fmt.Errorf("credentials şablonu işlenemedi: %w", err)
	}

	// O_EXCL so a file that appeared in the meantime is never clobbered
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("credentials dosyası oluşturulamadı: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return false, fmt.Errorf("credentials dosyası yazılamadı: %w", err)
	}
	return true, nil
}

// Load creates the file with defaults when absent and reads it back.
// Recognised keys override the defaults; anything else in the file is ignored.
func Load(path string) (Set, bool, error) {
	created, err := EnsureFile(path)
	if err != nil {
		return Set{}, false, err
	}

	env, err := gotenv.Read(path)
	if err != nil {
		return Set{}, created, fmt.Errorf("credentials dosyası okunamadı: %w", err)
	}

	return FromMap(env), created, nil
}

// FromMap overlays recognised keys from env onto the defaults
func FromMap(env map[string]string) Set {
	set := Defaults()
	fields := map[string]*string{
		PostgresUser:     &set.PostgresUser,
		PostgresPassword: &set.PostgresPassword,
		PostgresDB:       &set.PostgresDB,
		MongoDB:          &set.MongoDB,
		MongoReplSet:     &set.MongoReplSet,
		RedisPassword:    &set.RedisPassword,
		RabbitMQUser:     &set.RabbitMQUser,
		RabbitMQPassword: &set.RabbitMQPassword,
		SeqAdminPassword: &set.SeqAdminPassword,
	}
	for key, dst := range fields {
		if value, ok := env[key]; ok && value != "" {
			*dst = value
		}
	}
	return set
}
