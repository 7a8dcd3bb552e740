// Package database PostgreSQL持久层
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgreSQLConfig PostgreSQL配置
type PostgreSQLConfig struct {
	Host            string        `yaml:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port            int           `yaml:"port" env:"POSTGRES_PORT" default:"5432"`
	Database        string        `yaml:"database" env:"POSTGRES_DB" default:"pricetree"`
	Username        string        `yaml:"username" env:"POSTGRES_USER" default:"postgres"`
	Password        string        `yaml:"password" env:"POSTGRES_PASSWORD" default:""`
	SSLMode         string        `yaml:"ssl_mode" env:"POSTGRES_SSLMODE" default:"disable"`
	Schema          string        `yaml:"schema" env:"POSTGRES_SCHEMA" default:"pricetree"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"POSTGRES_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"POSTGRES_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"POSTGRES_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"POSTGRES_CONN_MAX_IDLE_TIME" default:"5m"`
	BatchSize       int           `yaml:"batch_size" env:"POSTGRES_BATCH_SIZE" default:"100"`
}

// PostgreSQLDB PostgreSQL数据库
type PostgreSQLDB struct {
	db     *gorm.DB
	config *PostgreSQLConfig
}

// NewPostgreSQLDB 创建PostgreSQL数据库连接
func NewPostgreSQLDB(config *PostgreSQLConfig) (*PostgreSQLDB, error) {
	if config.Schema == "" {
		config.Schema = "pricetree"
		log.Printf("WARNING: schema为空，使用默认值: pricetree")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode, config.Schema)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if err := db.Exec(fmt.Sprintf("SET search_path TO %s", config.Schema)).Error; err != nil {
		return nil, fmt.Errorf("设置schema失败: %w", err)
	}

	// 设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库ping失败: %w", err)
	}

	return &PostgreSQLDB{
		db:     db,
		config: config,
	}, nil
}

// CreateTables 创建表结构
func (p *PostgreSQLDB) CreateTables(ctx context.Context) error {
	err := p.db.WithContext(ctx).AutoMigrate(
		&TaskRecord{},
		&FileRecord{},
		&ImportStats{},
		&CategoryRow{},
	)
	if err != nil {
		return fmt.Errorf("自动迁移失败: %w", err)
	}
	return nil
}

// CreateTask 创建任务
func (p *PostgreSQLDB) CreateTask(ctx context.Context, task *TaskRecord) error {
	if err := p.db.WithContext(ctx).Create(task).Error; err != nil {
		log.Printf("[SQL ERROR] CreateTask failed: %v", err)
		return fmt.Errorf("创建任务失败: %w", err)
	}
	return nil
}

// GetTask 获取任务
func (p *PostgreSQLDB) GetTask(ctx context.Context, taskID string) (*TaskRecord, error) {
	var task TaskRecord
	err := p.db.WithContext(ctx).First(&task, "id = ?", taskID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("任务不存在: %s", taskID)
		}
		return nil, fmt.Errorf("获取任务失败: %w", err)
	}

	return &task, nil
}

// UpdateTask 更新任务
func (p *PostgreSQLDB) UpdateTask(ctx context.Context, task *TaskRecord) error {
	if err := p.db.WithContext(ctx).Save(task).Error; err != nil {
		log.Printf("[SQL ERROR] UpdateTask failed: %v", err)
		return fmt.Errorf("更新任务失败: %w", err)
	}
	return nil
}

// DeleteTask 删除任务
func (p *PostgreSQLDB) DeleteTask(ctx context.Context, taskID string) error {
	if err := p.db.WithContext(ctx).Delete(&TaskRecord{}, "id = ?", taskID).Error; err != nil {
		return fmt.Errorf("删除任务失败: %w", err)
	}
	return nil
}

// ListTasks 列出任务
func (p *PostgreSQLDB) ListTasks(ctx context.Context, limit, offset int) ([]*TaskRecord, error) {
	var tasks []*TaskRecord
	err := p.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("列出任务失败: %w", err)
	}

	return tasks, nil
}

// CreateFile 创建文件记录
func (p *PostgreSQLDB) CreateFile(ctx context.Context, file *FileRecord) error {
	if err := p.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("创建文件记录失败: %w", err)
	}
	return nil
}

// CreateImportStats 创建导入统计
func (p *PostgreSQLDB) CreateImportStats(ctx context.Context, stats *ImportStats) error {
	if err := p.db.WithContext(ctx).Create(stats).Error; err != nil {
		return fmt.Errorf("创建导入统计失败: %w", err)
	}
	return nil
}

// BatchInsertCategories 批量插入分类快照（自动生成批次ID）
func (p *PostgreSQLDB) BatchInsertCategories(ctx context.Context, rows []*CategoryRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}

	batchID := uuid.New().String()
	currentTime := time.Now()
	for _, row := range rows {
		if row.UploadBatchID == "" {
			row.UploadBatchID = batchID
		}
		if row.UploadTimestamp.IsZero() {
			row.UploadTimestamp = currentTime
		}
		row.IsCurrent = true
	}

	if err := p.db.WithContext(ctx).CreateInBatches(rows, p.config.BatchSize).Error; err != nil {
		return "", fmt.Errorf("批量插入分类失败: %w", err)
	}

	return batchID, nil
}

// BatchInsertCategoriesWithVersion 批量插入分类快照（支持版本管理）
// 旧版本标记为历史版本，新批次成为当前版本
func (p *PostgreSQLDB) BatchInsertCategoriesWithVersion(ctx context.Context, taskID, batchID string, rows []*CategoryRow) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&CategoryRow{}).
			Where("task_id = ? AND is_current = true", taskID).
			Update("is_current", false).Error
		if err != nil {
			return fmt.Errorf("标记历史版本失败: %w", err)
		}

		currentTime := time.Now()
		for _, row := range rows {
			row.TaskID = taskID
			row.UploadBatchID = batchID
			row.UploadTimestamp = currentTime
			row.IsCurrent = true
		}

		if err := tx.Omit("id").CreateInBatches(rows, p.config.BatchSize).Error; err != nil {
			return fmt.Errorf("批量插入版本化分类失败: %w", err)
		}

		return nil
	})
}

// GetCurrentCategoriesByTaskID 获取任务的当前版本分类数据
func (p *PostgreSQLDB) GetCurrentCategoriesByTaskID(ctx context.Context, taskID string) ([]*CategoryRow, error) {
	var rows []*CategoryRow
	err := p.db.WithContext(ctx).
		Model(&CategoryRow{}).
		Where("task_id = ? AND is_current = true", taskID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("获取当前版本分类失败: %w", err)
	}
	return rows, nil
}

// GetCategoriesByBatchID 根据批次ID获取分类数据
func (p *PostgreSQLDB) GetCategoriesByBatchID(ctx context.Context, batchID string) ([]*CategoryRow, error) {
	var rows []*CategoryRow
	err := p.db.WithContext(ctx).
		Model(&CategoryRow{}).
		Where("upload_batch_id = ?", batchID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("根据批次ID获取分类失败: %w", err)
	}
	return rows, nil
}

// GetChildrenByParentCode 根据父节点编码获取其直接子节点
func (p *PostgreSQLDB) GetChildrenByParentCode(ctx context.Context, taskID string, version string, parentCode string) ([]*CategoryRow, error) {
	query := p.db.WithContext(ctx).Where("task_id = ? AND parent_code = ?", taskID, parentCode)

	if version != "" {
		// 指定版本 (upload_batch_id) 下的子节点
		query = query.Where("upload_batch_id = ?", version)
	} else {
		// 当前激活版本的子节点
		query = query.Where("is_current = ?", true)
	}

	var rows []*CategoryRow
	// 按入库顺序返回，保持源数据中的出现顺序
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("获取父节点 %s 的子节点失败: %w", parentCode, err)
	}

	return rows, nil
}

// GetCategoryVersionHistory 获取分类快照的版本历史
func (p *PostgreSQLDB) GetCategoryVersionHistory(ctx context.Context, taskID string) ([]*CategoryVersion, error) {
	var versions []*CategoryVersion

	rows, err := p.db.WithContext(ctx).Raw(`
		SELECT
			upload_batch_id,
			upload_timestamp,
			COUNT(*) as record_count,
			is_current
		FROM categories
		WHERE task_id = ?
		GROUP BY upload_batch_id, upload_timestamp, is_current
		ORDER BY upload_timestamp DESC
	`, taskID).Rows()

	if err != nil {
		return nil, fmt.Errorf("获取版本历史失败: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version CategoryVersion
		err := rows.Scan(
			&version.UploadBatchID,
			&version.UploadTimestamp,
			&version.RecordCount,
			&version.IsCurrent,
		)
		if err != nil {
			return nil, fmt.Errorf("扫描版本历史记录失败: %w", err)
		}
		versions = append(versions, &version)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历版本历史记录失败: %w", err)
	}

	return versions, nil
}

// Close 关闭数据库连接
func (p *PostgreSQLDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 测试连接
func (p *PostgreSQLDB) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetDB 获取原始数据库连接
func (p *PostgreSQLDB) GetDB() *gorm.DB {
	return p.db
}

// DatabaseInterface 数据库接口
type DatabaseInterface interface {
	CreateTables(ctx context.Context) error
	CreateTask(ctx context.Context, task *TaskRecord) error
	GetTask(ctx context.Context, taskID string) (*TaskRecord, error)
	UpdateTask(ctx context.Context, task *TaskRecord) error
	ListTasks(ctx context.Context, limit, offset int) ([]*TaskRecord, error)
	DeleteTask(ctx context.Context, taskID string) error
	CreateFile(ctx context.Context, file *FileRecord) error
	CreateImportStats(ctx context.Context, stats *ImportStats) error
	BatchInsertCategories(ctx context.Context, rows []*CategoryRow) (string, error)
	BatchInsertCategoriesWithVersion(ctx context.Context, taskID, batchID string, rows []*CategoryRow) error
	GetCurrentCategoriesByTaskID(ctx context.Context, taskID string) ([]*CategoryRow, error)
	GetCategoriesByBatchID(ctx context.Context, batchID string) ([]*CategoryRow, error)
	GetChildrenByParentCode(ctx context.Context, taskID string, version string, parentCode string) ([]*CategoryRow, error)
	GetCategoryVersionHistory(ctx context.Context, taskID string) ([]*CategoryVersion, error)
	Close() error
	Ping(ctx context.Context) error
}
