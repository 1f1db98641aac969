/*
包 database 管理预构建索引制品（SQLite 文件）的打开与关闭。

# 概述

Artifact 使用纯 Go 的 glebarez/sqlite 驱动与 GORM 打开制品。ReadOnly 模式下
文件必须已存在，缺失时返回 ErrArtifactMissing，读取方不会创建空库。
每次索引加载打开一个 Artifact，读完即关闭，连接池只保留一个连接。

# 核心类型

  - Artifact：制品句柄，提供 DB(ctx)、HasTable()、Ping()、Close()。
  - Options / Mode：打开方式与连接参数。
*/
package database
