package clickhouse

import (
	"time"

	"github.com/golang/mock/gomock"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/utxo/model"
)

func (s *RepositorySuite) TestInsertBlocks() {
	now := time.Now().UTC().Truncate(time.Second)
	blocks := []model.Block{
		newBlock(0, "a", now),
		newBlock(1, "b", now.Add(time.Second)),
	}

	s.metrics.EXPECT().Observe("insert_blocks", model.BTC, model.Mainnet, gomock.Nil(), gomock.Any()).Times(1)

	s.Require().NoError(s.repo.InsertBlocks(s.testCtx, blocks))
	s.Equal(uint64(len(blocks)), s.countRows("utxo_blocks FINAL"))
}

func (s *RepositorySuite) TestInsertBlocksTwiceKeepsOneRow() {
	now := time.Now().UTC().Truncate(time.Second)
	block := newBlock(5, "c", now)

	s.metrics.EXPECT().Observe("insert_blocks", model.BTC, model.Mainnet, gomock.Nil(), gomock.Any()).Times(2)

	s.Require().NoError(s.repo.InsertBlocks(s.testCtx, []model.Block{block}))
	s.Require().NoError(s.repo.InsertBlocks(s.testCtx, []model.Block{block}))

	s.Equal(uint64(1), s.countRows("utxo_blocks FINAL"))
}
