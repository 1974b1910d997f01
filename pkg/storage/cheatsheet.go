package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"devpods/pkg/credentials"
	"devpods/pkg/pod"
)

// CheatsheetFile is the generated connection cheatsheet inside the data root
const CheatsheetFile = "connections.txt"

type cheatsheetPod struct {
	Key       string
	Name      string
	Endpoints string
	Lines     []string
}

var cheatsheetTemplate = template.Must(template.New("cheatsheet").Parse(`devpods connection cheatsheet
Generated {{.Generated}} by "devpods up". Edits are overwritten.
Data root: {{.DataDir}}
{{range .Pods}}
[{{.Key}}] pod {{.Name}}
  {{.Endpoints}}
{{- range .Lines}}
  {{.}}
{{- end}}
{{end}}`))

func connectionLines(k pod.Kind, c credentials.Set) []string {
	switch k {
	case pod.Postgres:
		return []string{
			fmt.Sprintf("DATABASE_URL=postgres://%s:%s@localhost:5432/%s?sslmode=disable", c.PostgresUser, c.PostgresPassword, c.PostgresDB),
			fmt.Sprintf("psql -h localhost -U %s -d %s", c.PostgresUser, c.PostgresDB),
		}
	case pod.Mongo:
		return []string{
			fmt.Sprintf("MONGO_URL=mongodb://localhost:27017/%s?replicaSet=%s&directConnection=true", c.MongoDB, c.MongoReplSet),
		}
	case pod.Redis:
		return []string{
			fmt.Sprintf("REDIS_URL=redis://:%s@localhost:6379/0", c.RedisPassword),
		}
	case pod.Mail:
		return []string{
			"SMTP_HOST=localhost SMTP_PORT=1025 (no TLS, any credentials)",
		}
	case pod.Seq:
		return []string{
			"SEQ_URL=http://localhost:5341",
			fmt.Sprintf("UI login: admin / %s", c.SeqAdminPassword),
		}
	case pod.RabbitMQ:
		return []string{
			fmt.Sprintf("AMQP_URL=amqp://%s:%s@localhost:5672/", c.RabbitMQUser, c.RabbitMQPassword),
		}
	case pod.NATS:
		return []string{
			"NATS_URL=nats://localhost:4222 (JetStream enabled)",
		}
	}
	return nil
}

// WriteCheatsheet renders the cheatsheet for every pod and replaces the file
func (s *Storage) WriteCheatsheet(creds credentials.Set, now time.Time) (string, error) {
	pods := make([]cheatsheetPod, 0, len(pod.All()))
	for _, k := range pod.All() {
		pods = append(pods, cheatsheetPod{
			Key:       k.Key(),
			Name:      k.Name(),
			Endpoints: k.Endpoints(),
			Lines:     connectionLines(k, creds),
		})
	}

	var buf bytes.Buffer
	err := cheatsheetTemplate.Execute(&buf, map[string]interface{}{
		"Generated": now.Format("2006-01-02 15:04:05"),
		"DataDir":   s.dataDir,
		"Pods":      pods,
	})
	if err != nil {
		return "", fmt.Errorf("cheatsheet işlenemedi: %w", err)
	}

	path := filepath.Join(s.dataDir, CheatsheetFile)
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return "", fmt.Errorf("cheatsheet kaydedilemedi: %w", err)
	}

	s.logger.WithField("file", path).Debug("Cheatsheet kaydedildi")
	return path, nil
}
