package client

import (
	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/stleox/caphub/pkg/config"
	"github.com/stleox/caphub/pkg/protocol"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// Olap 把已捕获事件落到 OLAP 审计表，旁路功能，失败只记日志。
type Olap struct {
	conn          sqlx.SqlConn
	eventInserter *sqlx.BulkInserter
}

func NewOlap(olapDSN string) *Olap {
	if olapDSN == "" {
		olapDSN = config.CAPHUB_DEFAULT_OLAP_DSN
	}

	db := sqlx.NewMysql(olapDSN)

	if err := CreateEventTable(db); err != nil {
		logrus.WithError(err).Error("Caphub couldn't create table t_Event")
		return nil
	}

	eventInserter, err := NewEventInserter(db)
	if err != nil {
		logrus.WithError(err).Error("Caphub couldn't open table t_Event")
		return nil
	}

	return &Olap{
		conn:          db,
		eventInserter: eventInserter,
	}
}

func CreateEventTable(db sqlx.SqlConn) error {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS `t_Event` " +
		"(id VARCHAR(32), " + // len(UUID32)
		"level VARCHAR(8), " +
		"message VARCHAR(1024), " +
		"tx_name VARCHAR(200), " +
		"release_tag VARCHAR(64), " +
		"environment VARCHAR(64), " +
		"created_at DATETIME(6));")
	return err
}

func NewEventInserter(db sqlx.SqlConn) (*sqlx.BulkInserter, error) {
	return sqlx.NewBulkInserter(db, "INSERT INTO `t_Event` "+
		"(id, "+
		"level, "+
		"message, "+
		"tx_name, "+
		"release_tag, "+
		"environment, "+
		"created_at) "+
		"VALUES (?,?,?,?,?,?,?)")
}

func (o *Olap) InsertEvent(event *protocol.Event) {
	if o == nil {
		return
	}
	err := o.eventInserter.Insert(
		string(event.ID),
		string(event.Level),
		event.Message,
		event.Transaction,
		event.Release,
		event.Environment,
		event.Timestamp.String()[:config.L_DATE6])
	if err != nil {
		logrus.WithError(err).WithField("event", event.ID).Warn("Caphub couldn't insert event")
	}
}

func (o *Olap) Flush() {
	if o == nil {
		return
	}
	o.eventInserter.Flush()
}
