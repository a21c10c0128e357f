package datalake

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedLocation 存储 URL 缺少 scheme、host 或容器名
var ErrMalformedLocation = errors.New("存储 URL 格式不正确")

// Location 解析后的存储位置
// Endpoint 已归一化为层级命名空间（dfs）端点；
// Directory 不含首尾斜杠，根目录为空串；SASToken 为原始 query 串，不做解码
type Location struct {
	Endpoint  string
	Container string
	Directory string
	SASToken  string
}

// ParseLocation 解析 API 下发的带 SAS 令牌的存储 URL
// 例：https://acct.blob.core.windows.net/fs/a/b?sv=...&sig=...
// → Endpoint=https://acct.dfs.core.windows.net Container=fs Directory=a/b SASToken=sv=...&sig=...
func ParseLocation(rawURL string) (Location, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrMalformedLocation, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Location{}, fmt.Errorf("%w: 缺少 scheme 或 host: %s", ErrMalformedLocation, rawURL)
	}

	// 文件操作必须走层级命名空间端点，而 API 可能返回 blob 端点
	endpoint := strings.ReplaceAll(fmt.Sprintf("%s://%s", u.Scheme, u.Host), ".blob.", ".dfs.")

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return Location{}, fmt.Errorf("%w: 缺少容器名: %s", ErrMalformedLocation, rawURL)
	}
	parts := strings.Split(path, "/")

	return Location{
		Endpoint:  endpoint,
		Container: parts[0],
		Directory: strings.Join(parts[1:], "/"),
		SASToken:  u.RawQuery,
	}, nil
}

// directoryURL 目录级访问地址（上传/下载用）
func (l Location) directoryURL() string {
	u := l.Endpoint + "/" + l.Container
	if l.Directory != "" {
		u += "/" + l.Directory
	}
	if l.SASToken != "" {
		u += "?" + l.SASToken
	}
	return u
}

// filesystemURL 容器级访问地址（枚举用）
func (l Location) filesystemURL() string {
	u := l.Endpoint + "/" + l.Container
	if l.SASToken != "" {
		u += "?" + l.SASToken
	}
	return u
}
