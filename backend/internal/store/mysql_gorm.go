package store

import (
	"errors"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"notecollab/backend/internal/entity"
)

// MySQL 唯一键冲突
const errDuplicateEntry = 1062

func InitMySQL(dsn string, autoMigrate bool) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if autoMigrate {
		if err := db.AutoMigrate(&entity.User{}, &entity.Note{}, &entity.NoteMember{}); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func isDuplicate(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}
