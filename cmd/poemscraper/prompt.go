package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-poems/models"
)

const modeMenu = "请输入你想要爬取诗文的功能\n[1] 按照作者爬取\n[2] 按照朝代爬取\n[3] 按照类型爬取\n[4] 按照标题爬取\n? "

var parameterPrompts = map[models.Mode]string{
	models.ModeAuthor:   "请输入诗人的名字: ",
	models.ModeEra:      "请输入朝代: ",
	models.ModeCategory: "请输入诗文类型: ",
}

const countPrompt = "请输入爬取的古诗数量: "

// prompter reads the crawl query from an interactive operator.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// Query asks for the mode first and rejects an unusable one before asking
// anything else.
func (p *prompter) Query() (models.CrawlQuery, error) {
	raw, err := p.ask(menuText(modeMenu))
	if err != nil {
		return models.CrawlQuery{}, err
	}
	mode, err := models.ParseMode(raw)
	if err != nil {
		return models.CrawlQuery{}, err
	}
	if mode == models.ModeTitle {
		return models.CrawlQuery{}, fmt.Errorf("%w: %s", models.ErrUnsupportedMode, mode)
	}

	param, err := p.ask(promptText(parameterPrompts[mode]))
	if err != nil {
		return models.CrawlQuery{}, err
	}
	rawCount, err := p.ask(promptText(countPrompt))
	if err != nil {
		return models.CrawlQuery{}, err
	}
	count, err := parseCount(rawCount)
	if err != nil {
		return models.CrawlQuery{}, err
	}
	return models.NewCrawlQuery(mode, param, count)
}

func (p *prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: input closed", models.ErrInvalidInput)
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func parseCount(raw string) (int, error) {
	count, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: count %q is not a number", models.ErrInvalidInput, raw)
	}
	return count, nil
}
