package datalake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/directory"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/file"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/filesystem"

	"github.com/z-wentao/callflow/pkg/models"
)

// 扩展名无法识别时的默认音频 MIME 类型
const defaultContentType = "audio/wav"

// ErrObjectNotFound 要下载的对象不存在
var ErrObjectNotFound = errors.New("对象不存在")

// TransportError 与存储服务交互失败（网络或服务端错误）
type TransportError struct {
	Op   string
	Name string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("存储操作 %s %s 失败: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("存储操作 %s 失败: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client ADLS Gen2 存储客户端
// 上传/下载走目录级 client，枚举走容器（文件系统）级 client，
// 两者的授权范围和路径语义不同，不能混用。
// 同一个实例在输入阶段和输出阶段之间通过 Bind 复用；
// Bind 不是并发安全的，不能与进行中的上传/枚举/下载同时调用。
type Client struct {
	loc         Location
	concurrency int
}

// NewClient 创建存储客户端（位置可以之后再 Bind）
func NewClient(loc Location, uploadConcurrency int) *Client {
	if uploadConcurrency <= 0 {
		uploadConcurrency = 3
	}
	return &Client{loc: loc, concurrency: uploadConcurrency}
}

// Bind 重新绑定存储位置
func (c *Client) Bind(loc Location) {
	c.loc = loc
}

// Location 当前绑定的存储位置
func (c *Client) Location() Location {
	return c.loc
}

// uploadResult 内部用于 Channel 传递
type uploadResult struct {
	index   int
	outcome models.UploadOutcome
}

// Upload 并发上传一批文件到当前绑定目录
// 每个文件的成败相互独立，逐个记录结果，按入参顺序返回
func (c *Client) Upload(ctx context.Context, files []models.AudioFile) []models.UploadOutcome {
	if len(files) == 0 {
		return nil
	}

	// 1. 任务队列和结果收集 Channel
	taskChan := make(chan int, len(files))
	resultChan := make(chan uploadResult, len(files))

	workers := c.concurrency
	if workers > len(files) {
		workers = len(files)
	}

	// 2. 启动上传 Goroutine Pool
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range taskChan {
				f := files[idx]
				err := c.uploadOne(ctx, f)
				out := models.UploadOutcome{Name: f.Name, OK: err == nil}
				if err != nil {
					out.Error = err.Error()
					log.Printf("❌ 上传失败 %s: %v", f.Name, err)
				} else {
					log.Printf("✓ 上传成功: %s", f.Name)
				}
				resultChan <- uploadResult{index: idx, outcome: out}
			}
		}()
	}

	// 3. 发送任务
	for i := range files {
		taskChan <- i
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// 4. 收集结果，按入参顺序落位
	outcomes := make([]models.UploadOutcome, len(files))
	for r := range resultChan {
		outcomes[r.index] = r.outcome
	}
	return outcomes
}

// uploadOne 上传单个文件（覆盖写：同名文件以最后一次上传为准）
func (c *Client) uploadOne(ctx context.Context, f models.AudioFile) error {
	dirClient, err := directory.NewClientWithNoCredential(c.loc.directoryURL(), nil)
	if err != nil {
		return fmt.Errorf("创建目录客户端失败: %w", err)
	}

	fileClient, err := dirClient.NewFileClient(f.Name)
	if err != nil {
		return fmt.Errorf("创建文件客户端失败: %w", err)
	}

	contentType := contentTypeFor(f.Name)

	if _, err := fileClient.Create(ctx, nil); err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	if err := fileClient.UploadBuffer(ctx, f.Data, &file.UploadBufferOptions{
		HTTPHeaders: &file.HTTPHeaders{ContentType: to.Ptr(contentType)},
	}); err != nil {
		return fmt.Errorf("写入失败: %w", err)
	}
	return nil
}

// contentTypeFor 按文件名推断 MIME 类型，识别不出来按通用音频处理
func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return defaultContentType
}

// List 递归枚举当前绑定目录下的所有文件，返回文件名（最后一段路径）
// 分页结果统一加锁追加到共享切片，顺序不保证稳定
func (c *Client) List(ctx context.Context) ([]string, error) {
	fsClient, err := filesystem.NewClientWithNoCredential(c.loc.filesystemURL(), nil)
	if err != nil {
		return nil, &TransportError{Op: "list", Err: err}
	}

	var (
		mu    sync.Mutex
		names []string
	)

	opts := &filesystem.ListPathsOptions{}
	if c.loc.Directory != "" {
		opts.Prefix = to.Ptr(c.loc.Directory)
	}

	pager := fsClient.NewListPathsPager(true, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, &TransportError{Op: "list", Err: err}
		}
		for _, p := range page.Paths {
			if p.Name == nil {
				continue
			}
			if p.IsDirectory != nil && *p.IsDirectory {
				continue
			}
			name := *p.Name
			if i := strings.LastIndex(name, "/"); i >= 0 {
				name = name[i+1:]
			}
			mu.Lock()
			names = append(names, name)
			mu.Unlock()
		}
	}
	return names, nil
}

// Download 下载当前绑定目录下的单个文件内容
func (c *Client) Download(ctx context.Context, name string) ([]byte, error) {
	dirClient, err := directory.NewClientWithNoCredential(c.loc.directoryURL(), nil)
	if err != nil {
		return nil, &TransportError{Op: "download", Name: name, Err: err}
	}

	fileClient, err := dirClient.NewFileClient(name)
	if err != nil {
		return nil, &TransportError{Op: "download", Name: name, Err: err}
	}

	resp, err := fileClient.DownloadStream(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
		}
		return nil, &TransportError{Op: "download", Name: name, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "download", Name: name, Err: err}
	}
	return data, nil
}
