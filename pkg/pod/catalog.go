package pod

import (
	"fmt"
	"time"

	"devpods/pkg/container"
	"devpods/pkg/credentials"
)

func tcp(host, ctr int) container.PortMapping {
	return container.PortMapping{Host: host, Container: ctr, Protocol: "tcp"}
}

var definitions = map[Kind]definition{
	Postgres: {
		key:       "postgres",
		role:      "database-relational",
		aliases:   []string{"pg", "postgresql", "database-relational"},
		ports:     []container.PortMapping{tcp(5432, 5432), tcp(8081, 8081)},
		endpoints: "postgres://localhost:5432 | pgweb http://localhost:8081",
		services:  postgresServices,
	},
	Mongo: {
		key:       "mongo",
		role:      "database-document",
		aliases:   []string{"mongodb", "database-document"},
		ports:     []container.PortMapping{tcp(27017, 27017), tcp(8082, 8081)},
		endpoints: "mongodb://localhost:27017 (replica set) | mongo-express http://localhost:8082",
		services:  mongoServices,
	},
	Redis: {
		key:       "redis",
		role:      "cache-kv",
		aliases:   []string{"cache", "cache-kv"},
		ports:     []container.PortMapping{tcp(6379, 6379), tcp(8083, 8001)},
		endpoints: "redis://localhost:6379 | RedisInsight http://localhost:8083",
		services:  redisServices,
	},
	Mail: {
		key:       "mail",
		role:      "mail-capture",
		aliases:   []string{"mailpit", "smtp", "mail-capture"},
		ports:     []container.PortMapping{tcp(1025, 1025), tcp(8025, 8025)},
		endpoints: "smtp://localhost:1025 | Mailpit http://localhost:8025",
		services:  mailServices,
	},
	Seq: {
		key:       "seq",
		role:      "log-aggregator",
		aliases:   []string{"logs", "log-aggregator"},
		ports:     []container.PortMapping{tcp(5341, 80)},
		endpoints: "Seq http://localhost:5341 (ingest + UI)",
		services:  seqServices,
	},
	RabbitMQ: {
		key:       "rabbitmq",
		role:      "message-broker-amqp",
		aliases:   []string{"rabbit", "amqp", "message-broker-amqp"},
		ports:     []container.PortMapping{tcp(5672, 5672), tcp(15672, 15672)},
		endpoints: "amqp://localhost:5672 | management http://localhost:15672",
		services:  rabbitServices,
	},
	NATS: {
		key:       "nats",
		role:      "message-broker-pubsub",
		aliases:   []string{"pubsub", "message-broker-pubsub"},
		ports:     []container.PortMapping{tcp(4222, 4222), tcp(8222, 8222), tcp(6222, 6222)},
		endpoints: "nats://localhost:4222 | monitoring http://localhost:8222 | cluster :6222",
		services:  natsServices,
	},
}

func postgresServices(c credentials.Set) []Service {
	return []Service{
		{
			Name:  "postgres",
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     c.PostgresUser,
				"POSTGRES_PASSWORD": c.PostgresPassword,
				"POSTGRES_DB":       c.PostgresDB,
				"PGDATA":            "/var/lib/postgresql/data/pgdata",
			},
			MountPath: "/var/lib/postgresql/data",
			HealthCheck: &container.HealthCheck{
				Test:     []string{"CMD-SHELL", fmt.Sprintf("pg_isready -U %s -d %s", c.PostgresUser, c.PostgresDB)},
				Interval: 5 * time.Second,
				Timeout:  5 * time.Second,
				Retries:  10,
			},
		},
		{
			Name:  "pgweb",
			Image: "sosedoff/pgweb:latest",
			Env: map[string]string{
				"PGWEB_DATABASE_URL": fmt.Sprintf("postgres://%s:%s@localhost:5432/%s?sslmode=disable",
					c.PostgresUser, c.PostgresPassword, c.PostgresDB),
			},
		},
	}
}

func mongosh(eval string) []string {
	return []string{"mongosh", "--quiet", "--eval", eval}
}

func mongoServices(c credentials.Set) []Service {
	return []Service{
		{
			Name:      "mongo",
			Image:     "mongo:7",
			Command:   []string{"mongod", "--replSet", c.MongoReplSet, "--bind_ip_all"},
			MountPath: "/data/db",
			HealthCheck: &container.HealthCheck{
				Test:     append([]string{"CMD"}, mongosh("db.adminCommand('ping').ok")...),
				Interval: 5 * time.Second,
				Timeout:  5 * time.Second,
				Retries:  10,
			},
			Cluster: &Cluster{
				Liveness: mongosh("db.adminCommand('ping').ok"),
				Status:   mongosh("rs.status().ok"),
				Initiate: mongosh(fmt.Sprintf("rs.initiate({_id: '%s', members: [{_id: 0, host: 'localhost:27017'}]})", c.MongoReplSet)),
			},
		},
		{
			Name:  "mongo-express",
			Image: "mongo-express:latest",
			Env: map[string]string{
				"ME_CONFIG_MONGODB_URL": fmt.Sprintf("mongodb://localhost:27017/%s?replicaSet=%s&directConnection=true",
					c.MongoDB, c.MongoReplSet),
				"ME_CONFIG_BASICAUTH": "false",
			},
		},
	}
}

func redisServices(c credentials.Set) []Service {
	return []Service{
		{
			Name:  "redis",
			Image: "redis/redis-stack:latest",
			Env: map[string]string{
				"REDIS_ARGS": "--requirepass " + c.RedisPassword + " --appendonly yes",
			},
			MountPath: "/data",
			HealthCheck: &container.HealthCheck{
				Test:     []string{"CMD", "redis-cli", "-a", c.RedisPassword, "--no-auth-warning", "ping"},
				Interval: 5 * time.Second,
				Timeout:  3 * time.Second,
				Retries:  10,
			},
		},
	}
}

func mailServices(c credentials.Set) []Service {
	return []Service{
		{
			Name:  "mailpit",
			Image: "axllent/mailpit:latest",
			Env: map[string]string{
				"MP_DATABASE":                 "/data/mailpit.db",
				"MP_SMTP_AUTH_ACCEPT_ANY":     "1",
				"MP_SMTP_AUTH_ALLOW_INSECURE": "1",
			},
			MountPath: "/data",
			HealthCheck: &container.HealthCheck{
				Test:     []string{"CMD", "/mailpit", "readyz"},
				Interval: 5 * time.Second,
				Timeout:  3 * time.Second,
				Retries:  10,
			},
		},
	}
}

// Seq ships no health check; readiness falls back to the running state.
func seqServices(c credentials.Set) []Service {
	return []Service{
		{
			Name:  "seq",
			Image: "datalust/seq:latest",
			Env: map[string]string{
				"ACCEPT_EULA":                "Y",
				"SEQ_FIRSTRUN_ADMINPASSWORD": c.SeqAdminPassword,
			},
			MountPath: "/data",
		},
	}
}

func rabbitServices(c credentials.Set) []Service {
	return []Service{
		{
			Name:  "rabbitmq",
			Image: "rabbitmq:3-management",
			Env: map[string]string{
				"RABBITMQ_DEFAULT_USER": c.RabbitMQUser,
				"RABBITMQ_DEFAULT_PASS": c.RabbitMQPassword,
			},
			MountPath: "/var/lib/rabbitmq",
			HealthCheck: &container.HealthCheck{
				Test:        []string{"CMD", "rabbitmq-diagnostics", "-q", "ping"},
				Interval:    10 * time.Second,
				Timeout:     10 * time.Second,
				StartPeriod: 20 * time.Second,
				Retries:     10,
			},
		},
	}
}

func natsServices(c credentials.Set) []Service {
	return []Service{
		{
			Name:      "nats",
			Image:     "nats:2.10-alpine",
			Command:   []string{"-js", "-sd", "/data", "-m", "8222"},
			MountPath: "/data",
			HealthCheck: &container.HealthCheck{
				Test:     []string{"CMD-SHELL", "wget -q --spider http://localhost:8222/healthz || exit 1"},
				Interval: 5 * time.Second,
				Timeout:  3 * time.Second,
				Retries:  10,
			},
		},
	}
}
